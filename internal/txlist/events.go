package txlist

import (
	"github.com/saxa/pkbrokerd/internal/jobtypes"
	"github.com/saxa/pkbrokerd/internal/transaction"
)

// Changed is published whenever the list's membership or scheduling state
// changes: create, commit, finish, grace expiry, or remove.
type Changed struct{}

// Collaborator is the IPC layer's registration hook (spec.md §4.6 calls it
// "the external collaborator"): Create registers a newly-constructed
// Transaction with it, and removal (explicit or grace-timer expiry)
// unregisters it. txlist depends only on this interface, not on any
// concrete transport, so the daemon's IPC surface can evolve independently.
type Collaborator interface {
	RegisterTransaction(tid jobtypes.TID, tx *transaction.Transaction)
	UnregisterTransaction(tid jobtypes.TID)
}
