/*
Package workerpool lets a plugin entry point start background activities —
typically I/O that would otherwise block the event loop — and guarantees
every one of them has finished before the owning job is allowed to emit
Finished.

Each activity runs in its own goroutine, tracked by a sync.WaitGroup and
handed a context derived from the pool's parent; a single Cancel signals
all of them at once. Start launches one activity, WaitAll blocks until
every activity started so far has returned.
*/
package workerpool
