package engine

import "errors"

// Fatal load errors, per spec.md §7. A load failure is fatal for the
// engine: callers must discard it and create a fresh one.
var (
	ErrPluginNotFound    = errors.New("engine: plugin not found")
	ErrMissingDescriptor = errors.New("engine: plugin missing descriptor")
)
