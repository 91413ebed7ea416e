package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saxa/pkbrokerd/internal/events"
	"github.com/saxa/pkbrokerd/internal/jobtypes"
	"github.com/saxa/pkbrokerd/internal/metrics"
	"github.com/saxa/pkbrokerd/internal/protocol"
	"github.com/saxa/pkbrokerd/internal/supervisor"
	"github.com/saxa/pkbrokerd/internal/workerpool"
)

// DeferTick is how long Finish waits after joining the worker pool before
// publishing Finished, giving a client that caused the job to start a
// chance to install its completion subscription first. spec.md §4.4 calls
// this a "short event-loop deferral tick"; tests may override it per
// Engine via SetDeferTick.
const DeferTick = time.Millisecond

// Engine is the Backend Engine of spec.md §4.4: the executor of one job.
// It is created empty, loaded with a plugin, assigned exactly one role,
// and reaches Finished exactly once. An Engine is not reusable; a new job
// requires a new Engine.
type Engine struct {
	registry  *Registry
	logger    zerolog.Logger
	broker    *events.Broker[Event]
	pool      *workerpool.Pool
	deferTick time.Duration

	mu         sync.Mutex
	pluginName string
	descriptor *Descriptor
	loaded     bool

	assigned bool
	role     jobtypes.Role
	status   jobtypes.Status
	killable bool
	exit     jobtypes.Exit

	sup           *supervisor.Supervisor
	helperPresent bool

	lastPercent    uint
	havePercent    bool
	lastSubPercent uint
	haveSubPercent bool
	lastPackage    jobtypes.PackageID
	havePackage    bool

	startedAt  time.Time
	finishOnce sync.Once
}

// New creates an empty Engine. ctx bounds the lifetime of any worker-pool
// activities started during the job.
func New(ctx context.Context, registry *Registry, logger zerolog.Logger) *Engine {
	return &Engine{
		registry:  registry,
		logger:    logger,
		broker:    events.NewBroker[Event](),
		pool:      workerpool.New(ctx),
		deferTick: DeferTick,
		role:      jobtypes.RoleUnknown,
		status:    jobtypes.StatusUnknown,
	}
}

// SetDeferTick overrides the Finished deferral delay. Intended for tests.
func (e *Engine) SetDeferTick(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deferTick = d
}

// Subscribe registers a new subscriber to the engine's event stream.
func (e *Engine) Subscribe() events.Subscriber[Event] {
	return e.broker.Subscribe()
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(sub events.Subscriber[Event]) {
	e.broker.Unsubscribe(sub)
}

// Pool exposes the job's worker pool so plugin entries can start
// background activities that are guaranteed to join before Finished.
func (e *Engine) Pool() *workerpool.Pool {
	return e.pool
}

// PluginName returns the name this engine was loaded with.
func (e *Engine) PluginName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pluginName
}

// Role returns the assigned role, or RoleUnknown before assignment.
func (e *Engine) Role() jobtypes.Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.role
}

// Assigned reports whether a role has been set.
func (e *Engine) Assigned() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assigned
}

// Status returns the current coarse progress tag.
func (e *Engine) Status() jobtypes.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Killable reports whether the running helper currently tolerates cancel.
func (e *Engine) Killable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killable
}

// ExitTag returns the current (possibly not-yet-final) exit outcome.
func (e *Engine) ExitTag() jobtypes.Exit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exit
}

// Coldplug returns the last memoized percentage, sub-percentage, and
// package id so a client subscribing mid-job can be brought up to date.
// The bool return values report whether that field has ever been set.
func (e *Engine) Coldplug() (percent uint, havePercent bool, subPercent uint, haveSubPercent bool, lastPackage jobtypes.PackageID, havePackage bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPercent, e.havePercent, e.lastSubPercent, e.haveSubPercent, e.lastPackage, e.havePackage
}

// Load resolves name against the registry, links it, and runs its
// Initialize hook if present. A load failure is fatal: discard this
// Engine and construct a fresh one for the next attempt.
//
// Load panics if called again on an Engine that already has a plugin
// linked.
func (e *Engine) Load(name string) error {
	e.mu.Lock()
	if e.loaded {
		e.mu.Unlock()
		panic("engine: Load called more than once")
	}
	e.mu.Unlock()

	d, ok := e.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if d == nil {
		return fmt.Errorf("%w: %s", ErrMissingDescriptor, name)
	}

	e.mu.Lock()
	e.pluginName = name
	e.descriptor = d
	e.loaded = true
	e.mu.Unlock()

	if d.Initialize != nil {
		if err := d.Initialize(e); err != nil {
			return fmt.Errorf("engine: plugin %s initialize: %w", name, err)
		}
	}
	return nil
}

// IntrospectActions returns the roles the loaded plugin advertises.
func (e *Engine) IntrospectActions() []jobtypes.Role {
	d := e.descriptorOrNil()
	if d == nil {
		return nil
	}
	if d.GetActions != nil {
		return d.GetActions()
	}
	return d.actionsFromSlots()
}

// IntrospectGroups returns the package groups the loaded plugin advertises.
func (e *Engine) IntrospectGroups() []jobtypes.GroupName {
	d := e.descriptorOrNil()
	if d == nil || d.GetGroups == nil {
		return nil
	}
	return d.GetGroups()
}

// IntrospectFilters returns the search filters the loaded plugin advertises.
func (e *Engine) IntrospectFilters() []string {
	d := e.descriptorOrNil()
	if d == nil || d.GetFilters == nil {
		return nil
	}
	return d.GetFilters()
}

func (e *Engine) descriptorOrNil() *Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.descriptor
}

// setRole assigns the job's role exactly once. A second call is a
// programming error: the descriptor must route through a single
// set-role path per job, per spec.md §4.4.
func (e *Engine) setRole(role jobtypes.Role) {
	e.mu.Lock()
	if e.assigned {
		e.mu.Unlock()
		panic("engine: role already assigned")
	}
	e.assigned = true
	e.role = role
	e.startedAt = time.Now()
	e.mu.Unlock()

	e.setStatus(jobtypes.StatusSetup)
}

func (e *Engine) setStatus(s jobtypes.Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
	e.broker.Publish(JobStatusChanged{Status: s})
}

// notSupported is invoked when the assigned role has no descriptor entry:
// it produces an ErrorCode(not-supported) event followed by Finished(failed).
func (e *Engine) notSupported() {
	e.EmitError(jobtypes.ErrorCodeNotSupported, fmt.Sprintf("role %s has no plugin entry", e.Role()))
	e.Finish(jobtypes.ExitFailed)
}

// --- Operations, one per role (spec.md §4.4) ---

func (e *Engine) GetDepends(ctx context.Context, id jobtypes.PackageID, recursive bool) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.GetDepends == nil {
		e.notSupported()
		return
	}
	d.GetDepends(ctx, e, id, recursive)
}

func (e *Engine) GetDescription(ctx context.Context, id jobtypes.PackageID) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.GetDescription == nil {
		e.notSupported()
		return
	}
	d.GetDescription(ctx, e, id)
}

func (e *Engine) GetRequires(ctx context.Context, id jobtypes.PackageID, recursive bool) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.GetRequires == nil {
		e.notSupported()
		return
	}
	d.GetRequires(ctx, e, id, recursive)
}

func (e *Engine) GetUpdates(ctx context.Context) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.GetUpdates == nil {
		e.notSupported()
		return
	}
	d.GetUpdates(ctx, e)
}

func (e *Engine) GetUpdateDetail(ctx context.Context, id jobtypes.PackageID) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.GetUpdateDetail == nil {
		e.notSupported()
		return
	}
	d.GetUpdateDetail(ctx, e, id)
}

func (e *Engine) Install(ctx context.Context, id jobtypes.PackageID) {
	e.setRole(jobtypes.RoleInstall)
	d := e.descriptorOrNil()
	if d == nil || d.InstallPackage == nil {
		e.notSupported()
		return
	}
	d.InstallPackage(ctx, e, id)
}

func (e *Engine) Remove(ctx context.Context, id jobtypes.PackageID, allowDeps bool) {
	e.setRole(jobtypes.RoleRemove)
	d := e.descriptorOrNil()
	if d == nil || d.RemovePackage == nil {
		e.notSupported()
		return
	}
	d.RemovePackage(ctx, e, id, allowDeps)
}

func (e *Engine) RefreshCache(ctx context.Context, force bool) {
	e.setRole(jobtypes.RoleRefreshCache)
	d := e.descriptorOrNil()
	if d == nil || d.RefreshCache == nil {
		e.notSupported()
		return
	}
	d.RefreshCache(ctx, e, force)
}

func (e *Engine) SearchName(ctx context.Context, filter, query string) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.SearchName == nil {
		e.notSupported()
		return
	}
	d.SearchName(ctx, e, filter, query)
}

func (e *Engine) SearchDetails(ctx context.Context, filter, query string) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.SearchDetails == nil {
		e.notSupported()
		return
	}
	d.SearchDetails(ctx, e, filter, query)
}

func (e *Engine) SearchFile(ctx context.Context, filter, query string) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.SearchFile == nil {
		e.notSupported()
		return
	}
	d.SearchFile(ctx, e, filter, query)
}

func (e *Engine) SearchGroup(ctx context.Context, filter, query string) {
	e.setRole(jobtypes.RoleQuery)
	d := e.descriptorOrNil()
	if d == nil || d.SearchGroup == nil {
		e.notSupported()
		return
	}
	d.SearchGroup(ctx, e, filter, query)
}

func (e *Engine) UpdatePackage(ctx context.Context, id jobtypes.PackageID) {
	e.setRole(jobtypes.RoleUpdate)
	d := e.descriptorOrNil()
	if d == nil || d.UpdatePackage == nil {
		e.notSupported()
		return
	}
	d.UpdatePackage(ctx, e, id)
}

func (e *Engine) UpdateSystem(ctx context.Context) {
	e.setRole(jobtypes.RoleSystemUpdate)
	d := e.descriptorOrNil()
	if d == nil || d.UpdateSystem == nil {
		e.notSupported()
		return
	}
	d.UpdateSystem(ctx, e)
}

// Cancel requests interruption of the running job. It is valid only when
// the job is assigned, currently killable, and a helper is present;
// otherwise it is a refused cancel and produces no event. If the plugin
// exposes no cancel hook, cancel refuses without side effects.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	ready := e.assigned && e.killable && e.helperPresent
	d := e.descriptor
	e.mu.Unlock()

	if !ready || d == nil || d.CancelJobTry == nil {
		return false
	}
	_ = d.CancelJobTry(e)
	return true
}

// SpawnHelper launches a helper subprocess, wires its output to the
// protocol parser and this engine's event stream, and arms the
// helper-exit handling described in spec.md §4.4 and §7: a non-zero exit
// with no prior ErrorCode synthesizes one, and any prior ErrorCode sticks
// regardless of exit code.
//
// At most one Helper Supervisor may be live at a time; calling SpawnHelper
// again before the previous helper has exited is a programming error.
func (e *Engine) SpawnHelper(ctx context.Context, script string, args ...string) error {
	e.mu.Lock()
	if e.sup != nil {
		e.mu.Unlock()
		panic("engine: at most one helper supervisor at a time")
	}
	sup := supervisor.New(e.logger)
	e.sup = sup
	e.helperPresent = true
	e.mu.Unlock()

	sup.OnLine = func(stream protocol.Stream, line string) {
		ev, err := protocol.Parse(stream, line)
		if err != nil {
			e.logger.Warn().Err(err).Str("plugin", e.PluginName()).Msg("helper protocol violation")
			return
		}
		if ev == nil {
			return
		}
		e.dispatchProtocolEvent(ev)
	}
	sup.OnExit = func(code int, _ error) {
		e.mu.Lock()
		e.sup = nil
		e.helperPresent = false
		e.killable = false
		alreadyFailed := e.exit == jobtypes.ExitFailed
		e.mu.Unlock()

		if code != 0 && !alreadyFailed {
			e.EmitError(jobtypes.ErrorCodeInternalError, fmt.Sprintf("helper exited with code %d", code))
		}

		final := jobtypes.ExitSuccess
		if code != 0 || e.ExitTag() == jobtypes.ExitFailed {
			final = jobtypes.ExitFailed
		}
		e.Finish(final)
	}

	if err := sup.Launch(ctx, script, args...); err != nil {
		e.mu.Lock()
		e.sup = nil
		e.helperPresent = false
		e.mu.Unlock()
		metrics.RecordHelperSpawnFailure()
		e.EmitError(jobtypes.ErrorCodeInternalError, err.Error())
		e.Finish(jobtypes.ExitFailed)
		return err
	}
	return nil
}

func (e *Engine) dispatchProtocolEvent(ev protocol.Event) {
	switch v := ev.(type) {
	case protocol.PackageEvent:
		e.mu.Lock()
		e.lastPackage = v.ID
		e.havePackage = true
		e.mu.Unlock()
		e.broker.Publish(Package{Info: v.Info, ID: v.ID, Summary: v.Summary})
	case protocol.DescriptionEvent:
		e.broker.Publish(Description{ID: v.ID, Licence: v.Licence, Group: v.Group, Text: v.Text, URL: v.URL})
	case protocol.PercentEvent:
		e.mu.Lock()
		e.lastPercent = v.Percent
		e.havePercent = true
		e.mu.Unlock()
		e.broker.Publish(PercentChanged{Percent: v.Percent})
	case protocol.SubPercentEvent:
		e.mu.Lock()
		e.lastSubPercent = v.Percent
		e.haveSubPercent = true
		e.mu.Unlock()
		e.broker.Publish(SubPercentChanged{Percent: v.Percent})
	case protocol.ErrorCodeEvent:
		e.EmitError(jobtypes.ErrorCode(v.Code), v.Message)
	case protocol.RestartEvent:
		e.broker.Publish(RequireRestart{Kind: v.Kind, Detail: v.Detail})
	case protocol.StatusEvent:
		e.setStatus(v.Status)
	case protocol.AllowInterruptEvent:
		e.mu.Lock()
		e.killable = v.Allow
		e.mu.Unlock()
		e.broker.Publish(AllowInterruptChanged{Allow: v.Allow})
	case protocol.NoPercentEvent:
		e.broker.Publish(NoPercentUpdates{})
	}
}

// --- Emitters for plugins that produce results without a helper ---

// EmitPackage reports a package directly, for plugins that answer without
// spawning a helper.
func (e *Engine) EmitPackage(info string, id jobtypes.PackageID, summary string) {
	e.mu.Lock()
	e.lastPackage = id
	e.havePackage = true
	e.mu.Unlock()
	e.broker.Publish(Package{Info: info, ID: id, Summary: summary})
}

// EmitDescription reports extended package metadata directly.
func (e *Engine) EmitDescription(id jobtypes.PackageID, licence string, group jobtypes.GroupName, text, url string) {
	e.broker.Publish(Description{ID: id, Licence: licence, Group: group, Text: text, URL: url})
}

// EmitUpdateDetail reports the result of GetUpdateDetail. It has no
// corresponding line in the helper protocol.
func (e *Engine) EmitUpdateDetail(id jobtypes.PackageID, updates, obsoletes []jobtypes.PackageID, url, restart, text string) {
	e.broker.Publish(UpdateDetail{ID: id, Updates: updates, Obsoletes: obsoletes, URL: url, Restart: restart, Text: text})
}

// EmitRequireRestart reports that applying a package will require a restart.
func (e *Engine) EmitRequireRestart(kind, detail string) {
	e.broker.Publish(RequireRestart{Kind: kind, Detail: detail})
}

// EmitStatus updates the coarse progress tag.
func (e *Engine) EmitStatus(s jobtypes.Status) {
	e.setStatus(s)
}

// EmitPercent updates the overall progress percentage.
func (e *Engine) EmitPercent(p uint) {
	e.mu.Lock()
	e.lastPercent = p
	e.havePercent = true
	e.mu.Unlock()
	e.broker.Publish(PercentChanged{Percent: p})
}

// EmitSubPercent updates the current sub-step progress percentage.
func (e *Engine) EmitSubPercent(p uint) {
	e.mu.Lock()
	e.lastSubPercent = p
	e.haveSubPercent = true
	e.mu.Unlock()
	e.broker.Publish(SubPercentChanged{Percent: p})
}

// EmitAllowInterrupt toggles whether the job currently tolerates cancel.
func (e *Engine) EmitAllowInterrupt(allow bool) {
	e.mu.Lock()
	e.killable = allow
	e.mu.Unlock()
	e.broker.Publish(AllowInterruptChanged{Allow: allow})
}

// EmitError reports a semantic failure. Its arrival latches the engine's
// exit tag to failed; Finished never downgrades a latched failure to
// success, per spec.md §4.4's sticky-failure rule.
func (e *Engine) EmitError(code jobtypes.ErrorCode, message string) {
	e.mu.Lock()
	e.exit = jobtypes.ExitFailed
	e.mu.Unlock()
	e.broker.Publish(ErrorCode{Code: code, Message: message})
}

// Finish completes the job with outcome, unless a latched failure
// overrides it. It joins the worker pool, then defers the Finished event
// by one tick so a client that caused the job to start can install its
// completion subscription before the event fires. Finish is idempotent:
// only the first call has any effect, guaranteeing Finished is delivered
// exactly once.
func (e *Engine) Finish(outcome jobtypes.Exit) {
	e.finishOnce.Do(func() {
		e.pool.WaitAll()

		e.mu.Lock()
		if e.exit != jobtypes.ExitFailed {
			e.exit = outcome
		}
		final := e.exit
		tick := e.deferTick
		e.mu.Unlock()

		e.setStatus(jobtypes.StatusExit)

		time.AfterFunc(tick, func() {
			e.resetProgress()
			e.broker.Publish(Finished{Exit: final})
		})
	})
}

func (e *Engine) resetProgress() {
	e.mu.Lock()
	e.havePercent = false
	e.haveSubPercent = false
	e.havePackage = false
	e.killable = false
	e.mu.Unlock()
}
