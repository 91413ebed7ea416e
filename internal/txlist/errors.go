package txlist

import "errors"

var (
	// ErrAlreadyExists is returned by Create when the TID is already known.
	ErrAlreadyExists = errors.New("txlist: transaction already exists")
	// ErrNotFound is returned by Commit/Remove for an unknown TID.
	ErrNotFound = errors.New("txlist: transaction not found")
	// ErrFinishedRetained is returned by Remove for a transaction still
	// held under its grace timer: it must expire on its own, not be
	// force-removed through this path.
	ErrFinishedRetained = errors.New("txlist: transaction finished, retained under grace timer")
)
