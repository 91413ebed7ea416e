package txlist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saxa/pkbrokerd/internal/engine"
	"github.com/saxa/pkbrokerd/internal/events"
	"github.com/saxa/pkbrokerd/internal/jobtypes"
	"github.com/saxa/pkbrokerd/internal/metrics"
	"github.com/saxa/pkbrokerd/internal/transaction"
)

// DefaultGrace is how long a finished transaction is retained before its
// grace timer removes it, per spec.md §4.6.
const DefaultGrace = 5 * time.Second

type entry struct {
	tx         *transaction.Transaction
	graceTimer *time.Timer
}

// List is the Transaction List of spec.md §4.6. Zero value is not usable;
// construct with New.
type List struct {
	ctx      context.Context
	registry *engine.Registry
	logger   zerolog.Logger
	grace    time.Duration
	collab   Collaborator

	mu          sync.Mutex
	scheduleMu  sync.Mutex
	order       []jobtypes.TID
	entries     map[jobtypes.TID]*entry
	runningTID  jobtypes.TID
	changed     *events.Broker[Changed]
}

// New creates an empty Transaction List. ctx bounds the lifetime of every
// Backend Engine this list creates. collab may be nil, in which case
// transactions simply aren't registered with any external collaborator.
func New(ctx context.Context, registry *engine.Registry, logger zerolog.Logger, grace time.Duration, collab Collaborator) *List {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &List{
		ctx:      ctx,
		registry: registry,
		logger:   logger,
		grace:    grace,
		collab:   collab,
		entries:  make(map[jobtypes.TID]*entry),
		changed:  events.NewBroker[Changed](),
	}
}

// Subscribe registers a subscriber to Changed notifications.
func (l *List) Subscribe() events.Subscriber[Changed] {
	return l.changed.Subscribe()
}

// Unsubscribe removes a Changed subscription.
func (l *List) Unsubscribe(sub events.Subscriber[Changed]) {
	l.changed.Unsubscribe(sub)
}

// Lookup returns the Transaction registered under tid, if any.
func (l *List) Lookup(tid jobtypes.TID) (*transaction.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[tid]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// Create constructs a Transaction for tid, bound to a fresh Backend Engine,
// and inserts it uncommitted. It fails if tid is already known.
func (l *List) Create(tid jobtypes.TID) (*transaction.Transaction, error) {
	l.mu.Lock()
	if _, exists := l.entries[tid]; exists {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, tid)
	}
	eng := engine.New(l.ctx, l.registry, l.logger)
	tx := transaction.New(tid, eng)
	l.entries[tid] = &entry{tx: tx}
	l.order = append(l.order, tid)
	l.mu.Unlock()

	tx.OnFinished(l.onFinished)
	if l.collab != nil {
		l.collab.RegisterTransaction(tid, tx)
	}
	l.changed.Publish(Changed{})
	return tx, nil
}

// Commit marks tid committed. If no transaction is currently running, the
// scheduler immediately attempts to start one.
func (l *List) Commit(tid jobtypes.TID) error {
	l.mu.Lock()
	e, ok := l.entries[tid]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, tid)
	}
	e.tx.Commit()
	l.changed.Publish(Changed{})
	l.dispatchNext()
	return nil
}

// Remove deletes tid from the list. It refuses transactions that have
// already finished: those are retained under their grace timer and must
// expire on their own, per spec.md §4.6.
func (l *List) Remove(tid jobtypes.TID) error {
	l.mu.Lock()
	e, ok := l.entries[tid]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, tid)
	}
	if e.tx.Finished() {
		return fmt.Errorf("%w: %s", ErrFinishedRetained, tid)
	}

	l.mu.Lock()
	delete(l.entries, tid)
	l.removeFromOrder(tid)
	l.mu.Unlock()

	if l.collab != nil {
		l.collab.UnregisterTransaction(tid)
	}
	l.changed.Publish(Changed{})
	return nil
}

// RolePresent reports whether some non-finished committed entry has role.
// Used to reject duplicate system-wide jobs such as a second concurrent
// update-system.
func (l *List) RolePresent(role jobtypes.Role) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tid := range l.order {
		e, ok := l.entries[tid]
		if !ok {
			continue
		}
		if e.tx.Committed() && !e.tx.Finished() && e.tx.Role() == role {
			return true
		}
	}
	return false
}

// GetArray returns the TIDs of entries that are committed and not
// finished, in submission order.
func (l *List) GetArray() []jobtypes.TID {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []jobtypes.TID
	for _, tid := range l.order {
		e, ok := l.entries[tid]
		if !ok {
			continue
		}
		if e.tx.Committed() && !e.tx.Finished() {
			out = append(out, tid)
		}
	}
	return out
}

// GetSize returns the length of the underlying sequence, including
// not-yet-committed entries and finished entries still under their grace
// timer.
func (l *List) GetSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// onFinished is the Transaction's Finished callback: it clears the running
// slot, arms the grace timer, notifies subscribers, and gives the next
// eligible transaction a chance to start.
func (l *List) onFinished(tid jobtypes.TID) {
	l.mu.Lock()
	if l.runningTID == tid {
		l.runningTID = ""
	}
	grace := l.grace
	_, ok := l.entries[tid]
	l.mu.Unlock()
	if !ok {
		return
	}

	metrics.RecordRunning(false)
	l.changed.Publish(Changed{})

	timer := time.AfterFunc(grace, func() { l.expire(tid) })
	l.mu.Lock()
	if e, ok := l.entries[tid]; ok {
		e.graceTimer = timer
	}
	l.mu.Unlock()

	l.dispatchNext()
}

// expire removes a finished transaction once its grace timer fires.
func (l *List) expire(tid jobtypes.TID) {
	l.mu.Lock()
	if _, ok := l.entries[tid]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.entries, tid)
	l.removeFromOrder(tid)
	l.mu.Unlock()

	if l.collab != nil {
		l.collab.UnregisterTransaction(tid)
	}
	l.changed.Publish(Changed{})
}

// dispatchNext enforces the invariant that at most one transaction has
// running ∧ ¬finished at a time. It is serialized by scheduleMu so two
// concurrent triggers (a Commit racing a Finished callback) can't both
// decide to start a transaction.
func (l *List) dispatchNext() {
	l.scheduleMu.Lock()
	defer l.scheduleMu.Unlock()

	l.mu.Lock()
	if l.runningTID != "" {
		l.mu.Unlock()
		return
	}
	candidates := make([]*transaction.Transaction, 0, len(l.order))
	for _, tid := range l.order {
		if e, ok := l.entries[tid]; ok {
			candidates = append(candidates, e.tx)
		}
	}
	l.mu.Unlock()

	for _, tx := range candidates {
		if !tx.Committed() || tx.Running() || tx.Finished() {
			continue
		}
		if tx.Run(l.ctx) {
			l.mu.Lock()
			l.runningTID = tx.TID
			l.mu.Unlock()
			metrics.RecordRunning(true)
			return
		}
	}
}

// removeFromOrder removes tid from the submission-order slice. Caller must
// hold l.mu.
func (l *List) removeFromOrder(tid jobtypes.TID) {
	for i, t := range l.order {
		if t == tid {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}
