package transaction

import (
	"context"
	"sync"

	"github.com/saxa/pkbrokerd/internal/engine"
	"github.com/saxa/pkbrokerd/internal/events"
	"github.com/saxa/pkbrokerd/internal/jobtypes"
	"github.com/saxa/pkbrokerd/internal/metrics"
)

// Transaction binds one client-visible TID to one Backend Engine. It is
// created unselected and uncommitted; a caller picks a role (via Select or
// one of the per-role wrappers below) and the Transaction List commits it
// and, in its turn, calls Run.
type Transaction struct {
	TID    jobtypes.TID
	engine *engine.Engine

	mu       sync.Mutex
	selected bool
	role     jobtypes.Role
	runner   func(ctx context.Context)

	committed bool
	running   bool
	finished  bool

	timer      *metrics.Timer
	broker     *events.Broker[engine.Event]
	onFinished func(jobtypes.TID)
}

// New binds tid to eng and starts relaying the engine's event stream onto
// the Transaction's own broker, so external subscribers see a transaction's
// events without reaching into its Engine.
func New(tid jobtypes.TID, eng *engine.Engine) *Transaction {
	t := &Transaction{
		TID:    tid,
		engine: eng,
		role:   jobtypes.RoleUnknown,
		broker: events.NewBroker[engine.Event](),
	}
	go t.relay(eng.Subscribe())
	return t
}

func (t *Transaction) relay(sub events.Subscriber[engine.Event]) {
	for ev := range sub {
		t.broker.Publish(ev)
		if fin, ok := ev.(engine.Finished); ok {
			t.engine.Unsubscribe(sub)
			t.recordFinished(fin)
			t.markFinished()
			return
		}
	}
}

func (t *Transaction) recordFinished(fin engine.Finished) {
	t.mu.Lock()
	role := t.role
	timer := t.timer
	t.mu.Unlock()
	if timer == nil {
		return
	}
	metrics.RecordJobFinished(role, fin.Exit, timer)
}

func (t *Transaction) markFinished() {
	t.mu.Lock()
	t.finished = true
	t.running = false
	cb := t.onFinished
	t.mu.Unlock()
	if cb != nil {
		cb(t.TID)
	}
}

// Engine returns the bound Backend Engine, for callers (coldplug reads,
// cancel) that need it directly.
func (t *Transaction) Engine() *engine.Engine {
	return t.engine
}

// Subscribe registers a subscriber to this transaction's event stream.
func (t *Transaction) Subscribe() events.Subscriber[engine.Event] {
	return t.broker.Subscribe()
}

// Unsubscribe removes a subscription registered with Subscribe.
func (t *Transaction) Unsubscribe(sub events.Subscriber[engine.Event]) {
	t.broker.Unsubscribe(sub)
}

// OnFinished registers the callback invoked exactly once, after the bound
// engine reaches Finished. There is a single slot, reserved for the
// Transaction List's scheduler (txlist.List.onFinished) to clear its
// running slot and arm the grace timer; a second call replaces rather than
// adds a subscriber. External observers should use Subscribe and watch for
// engine.Finished instead, as internal/ipc.Frontend does.
func (t *Transaction) OnFinished(fn func(jobtypes.TID)) {
	t.mu.Lock()
	t.onFinished = fn
	t.mu.Unlock()
}

// Select assigns the transaction's role and records the entry point Run
// will invoke. Select may be called at most once; a second call is a
// programming error, mirroring the Engine's one-shot role assignment.
func (t *Transaction) Select(role jobtypes.Role, runner func(ctx context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.selected {
		panic("transaction: role already selected")
	}
	t.selected = true
	t.role = role
	t.runner = runner
	t.timer = metrics.NewTimer()
	metrics.RecordJobStarted(role)
}

// Role returns the selected role, or RoleUnknown before Select.
func (t *Transaction) Role() jobtypes.Role {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.role
}

// Selected reports whether Select has been called.
func (t *Transaction) Selected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// Commit marks the transaction as committed, making it eligible for the
// Transaction List's scheduler to run.
func (t *Transaction) Commit() {
	t.mu.Lock()
	t.committed = true
	t.mu.Unlock()
}

// Committed reports whether Commit has been called.
func (t *Transaction) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// Running reports whether Run has started the job and it has not yet
// finished.
func (t *Transaction) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Finished reports whether the bound engine has reached Finished.
func (t *Transaction) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Run invokes the selected role's entry point, if this transaction is
// committed, selected, not already running, and not finished. It reports
// whether it actually started the job; a false return means the caller
// should move on to the next candidate transaction.
func (t *Transaction) Run(ctx context.Context) bool {
	t.mu.Lock()
	if !t.committed || t.finished || t.running || !t.selected || t.runner == nil {
		t.mu.Unlock()
		return false
	}
	t.running = true
	runner := t.runner
	t.mu.Unlock()

	runner(ctx)
	return true
}

// --- Per-role selection wrappers, mirroring Engine's operations ---

func (t *Transaction) SelectGetDepends(id jobtypes.PackageID, recursive bool) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.GetDepends(ctx, id, recursive) })
}

func (t *Transaction) SelectGetDescription(id jobtypes.PackageID) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.GetDescription(ctx, id) })
}

func (t *Transaction) SelectGetRequires(id jobtypes.PackageID, recursive bool) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.GetRequires(ctx, id, recursive) })
}

func (t *Transaction) SelectGetUpdates() {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.GetUpdates(ctx) })
}

func (t *Transaction) SelectGetUpdateDetail(id jobtypes.PackageID) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.GetUpdateDetail(ctx, id) })
}

func (t *Transaction) SelectInstall(id jobtypes.PackageID) {
	t.Select(jobtypes.RoleInstall, func(ctx context.Context) { t.engine.Install(ctx, id) })
}

func (t *Transaction) SelectRemove(id jobtypes.PackageID, allowDeps bool) {
	t.Select(jobtypes.RoleRemove, func(ctx context.Context) { t.engine.Remove(ctx, id, allowDeps) })
}

func (t *Transaction) SelectRefreshCache(force bool) {
	t.Select(jobtypes.RoleRefreshCache, func(ctx context.Context) { t.engine.RefreshCache(ctx, force) })
}

func (t *Transaction) SelectSearchName(filter, query string) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.SearchName(ctx, filter, query) })
}

func (t *Transaction) SelectSearchDetails(filter, query string) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.SearchDetails(ctx, filter, query) })
}

func (t *Transaction) SelectSearchFile(filter, query string) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.SearchFile(ctx, filter, query) })
}

func (t *Transaction) SelectSearchGroup(filter, query string) {
	t.Select(jobtypes.RoleQuery, func(ctx context.Context) { t.engine.SearchGroup(ctx, filter, query) })
}

func (t *Transaction) SelectUpdatePackage(id jobtypes.PackageID) {
	t.Select(jobtypes.RoleUpdate, func(ctx context.Context) { t.engine.UpdatePackage(ctx, id) })
}

func (t *Transaction) SelectUpdateSystem() {
	t.Select(jobtypes.RoleSystemUpdate, func(ctx context.Context) { t.engine.UpdateSystem(ctx) })
}

// Cancel requests interruption of the bound engine's job.
func (t *Transaction) Cancel() bool {
	accepted := t.engine.Cancel()
	metrics.RecordCancel(accepted)
	return accepted
}
