/*
Package supervisor launches and supervises a single helper subprocess.

It generalizes the cuemby/warren test harness's Process type
(test/framework/process.go) — stdout/stderr pipes drained by goroutines and
a single Wait — into the production Helper Supervisor of spec.md §4.2: a
one-shot, non-reusable launcher that delivers every complete line on either
stream through a callback tagged with its stream, and delivers an exit
callback exactly once when the child exits. Kill sends SIGTERM only; no
SIGKILL follows if the child ignores it.
*/
package supervisor
