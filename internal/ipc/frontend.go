package ipc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saxa/pkbrokerd/internal/jobtypes"
	"github.com/saxa/pkbrokerd/internal/transaction"
)

// NewTID generates a fresh, process-wide-unique transaction id. A real
// D-Bus/gRPC surface would let the caller supply its own id convention;
// this stand-in needs one of its own for the demo/test path.
func NewTID() jobtypes.TID {
	return jobtypes.TID(uuid.NewString())
}

// Frontend implements txlist.Collaborator. It tracks every live
// Transaction by TID and forwards its event stream to whatever listener
// a client has attached for that TID, standing in for the per-connection
// session state a real D-Bus or gRPC service would keep.
type Frontend struct {
	logger zerolog.Logger

	mu        sync.Mutex
	listeners map[jobtypes.TID]func(interface{})
	live      map[jobtypes.TID]*transaction.Transaction
}

// NewFrontend creates an empty Frontend.
func NewFrontend(logger zerolog.Logger) *Frontend {
	return &Frontend{
		logger:    logger,
		listeners: make(map[jobtypes.TID]func(interface{})),
		live:      make(map[jobtypes.TID]*transaction.Transaction),
	}
}

// RegisterTransaction implements txlist.Collaborator.
func (f *Frontend) RegisterTransaction(tid jobtypes.TID, tx *transaction.Transaction) {
	f.mu.Lock()
	f.live[tid] = tx
	f.mu.Unlock()

	go func() {
		sub := tx.Subscribe()
		for ev := range sub {
			f.mu.Lock()
			listener := f.listeners[tid]
			f.mu.Unlock()
			if listener != nil {
				listener(ev)
			}
		}
	}()
}

// UnregisterTransaction implements txlist.Collaborator.
func (f *Frontend) UnregisterTransaction(tid jobtypes.TID) {
	f.mu.Lock()
	delete(f.live, tid)
	delete(f.listeners, tid)
	f.mu.Unlock()
}

// Listen attaches a callback invoked for every event a transaction emits.
// It returns an error if the TID is not (or no longer) registered.
func (f *Frontend) Listen(tid jobtypes.TID, fn func(interface{})) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[tid]; !ok {
		return fmt.Errorf("ipc: unknown transaction %s", tid)
	}
	f.listeners[tid] = fn
	return nil
}

// Transaction returns the live Transaction for tid, for callers that need
// direct access (e.g. a cancel RPC).
func (f *Frontend) Transaction(tid jobtypes.TID) (*transaction.Transaction, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.live[tid]
	return tx, ok
}
