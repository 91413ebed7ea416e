package engine

import (
	"context"

	"github.com/saxa/pkbrokerd/internal/jobtypes"
)

// Descriptor is the contract consumed by Load (spec.md §6): a record of
// optional function slots supplied by a loaded plugin. Each slot takes the
// owning Engine plus role-appropriate arguments. A nil slot disables its
// corresponding operation; the set of non-nil slots determines the
// advertised action set via Introspect*.
type Descriptor struct {
	Initialize   func(e *Engine) error
	Destroy      func(e *Engine)
	CancelJobTry func(e *Engine) error

	GetDepends      func(ctx context.Context, e *Engine, id jobtypes.PackageID, recursive bool)
	GetDescription  func(ctx context.Context, e *Engine, id jobtypes.PackageID)
	GetRequires     func(ctx context.Context, e *Engine, id jobtypes.PackageID, recursive bool)
	GetUpdates      func(ctx context.Context, e *Engine)
	GetUpdateDetail func(ctx context.Context, e *Engine, id jobtypes.PackageID)
	InstallPackage  func(ctx context.Context, e *Engine, id jobtypes.PackageID)
	RefreshCache    func(ctx context.Context, e *Engine, force bool)
	RemovePackage   func(ctx context.Context, e *Engine, id jobtypes.PackageID, allowDeps bool)
	SearchDetails   func(ctx context.Context, e *Engine, filter, query string)
	SearchFile      func(ctx context.Context, e *Engine, filter, query string)
	SearchGroup     func(ctx context.Context, e *Engine, filter, query string)
	SearchName      func(ctx context.Context, e *Engine, filter, query string)
	UpdatePackage   func(ctx context.Context, e *Engine, id jobtypes.PackageID)
	UpdateSystem    func(ctx context.Context, e *Engine)

	GetGroups  func() []jobtypes.GroupName
	GetFilters func() []string
	GetActions func() []jobtypes.Role
}

// actionsFromSlots derives the advertised roles from the non-nil slots,
// used by IntrospectActions when the descriptor has no GetActions entry.
func (d *Descriptor) actionsFromSlots() []jobtypes.Role {
	var roles []jobtypes.Role
	add := func(present bool, role jobtypes.Role) {
		if present {
			roles = append(roles, role)
		}
	}
	add(d.GetDepends != nil || d.GetDescription != nil || d.GetRequires != nil ||
		d.SearchDetails != nil || d.SearchFile != nil || d.SearchGroup != nil || d.SearchName != nil,
		jobtypes.RoleQuery)
	add(d.RefreshCache != nil, jobtypes.RoleRefreshCache)
	add(d.InstallPackage != nil, jobtypes.RoleInstall)
	add(d.RemovePackage != nil, jobtypes.RoleRemove)
	add(d.UpdatePackage != nil || d.GetUpdates != nil || d.GetUpdateDetail != nil, jobtypes.RoleUpdate)
	add(d.UpdateSystem != nil, jobtypes.RoleSystemUpdate)
	return roles
}
