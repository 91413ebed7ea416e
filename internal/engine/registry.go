package engine

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
)

// Registry resolves a plugin name to a Descriptor. Go has no portable
// equivalent to dlopen()-ing an arbitrary shared object across platforms
// (the standard library's plugin package only works on a handful of
// unix targets and none of the example repos in this corpus exercise it),
// so Load resolves plugins by name against an in-process registry
// populated by Register, the same pattern database/sql uses for drivers.
// BuildLibraryPath is kept to preserve the §6 naming convention for
// diagnostics and for out-of-process tooling that does need the path.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*Descriptor)}
}

// Register makes a plugin's descriptor available under name. Registering
// the same name twice replaces the previous descriptor.
func (r *Registry) Register(name string, d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[name] = d
}

// Lookup returns the descriptor registered under name, if any.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.plugins[name]
	return d, ok
}

// BuildLibraryPath renders the §6 plugin file naming convention:
// <libDir>/packagekit-backend/libpk_backend_<name>.<platform-suffix>
func BuildLibraryPath(libDir, name string) string {
	suffix := "so"
	if runtime.GOOS == "darwin" {
		suffix = "dylib"
	} else if runtime.GOOS == "windows" {
		suffix = "dll"
	}
	return filepath.Join(libDir, "packagekit-backend", fmt.Sprintf("libpk_backend_%s.%s", name, suffix))
}

// HelperPath renders the §6 helper location convention:
// <dataDir>/PackageKit/helpers/<pluginName>/<script>
func HelperPath(dataDir, pluginName, script string) string {
	return filepath.Join(dataDir, "PackageKit", "helpers", pluginName, script)
}
