package main

import (
	"context"

	"github.com/saxa/pkbrokerd/internal/engine"
	"github.com/saxa/pkbrokerd/internal/jobtypes"
)

// registerBuiltinPlugins registers the in-process demo backend under the
// name "dummy", giving the daemon something answerable out of the box
// without a real package manager wired up. It answers SearchName,
// GetUpdates and RefreshCache directly (EmitPackage/EmitStatus/EmitPercent,
// no helper spawned) and treats everything else as unsupported, exercising
// the engine's notSupported path.
func registerBuiltinPlugins(registry *engine.Registry) {
	registry.Register("dummy", &engine.Descriptor{
		GetActions: func() []jobtypes.Role {
			return []jobtypes.Role{jobtypes.RoleQuery, jobtypes.RoleRefreshCache}
		},
		GetGroups: func() []jobtypes.GroupName {
			return []jobtypes.GroupName{jobtypes.GroupSystem, jobtypes.GroupAdminTools}
		},
		GetFilters: func() []string { return []string{"installed", "~installed"} },

		SearchName: func(ctx context.Context, e *engine.Engine, filter, query string) {
			e.EmitPackage("installed", "glibc;2.39-1;x86_64;dummy", "The GNU C Library")
			e.EmitPercent(100)
			e.Finish(jobtypes.ExitSuccess)
		},
		GetUpdates: func(ctx context.Context, e *engine.Engine) {
			e.EmitPackage("available", "glibc;2.39-2;x86_64;dummy", "The GNU C Library")
			e.EmitPercent(100)
			e.Finish(jobtypes.ExitSuccess)
		},
		RefreshCache: func(ctx context.Context, e *engine.Engine, force bool) {
			e.EmitStatus(jobtypes.StatusDownload)
			e.EmitPercent(100)
			e.Finish(jobtypes.ExitSuccess)
		},
	})
}
