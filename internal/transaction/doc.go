/*
Package transaction implements the Transaction of spec.md §4.5: a thin
coordinator binding one client-visible TID to one Backend Engine.

A Transaction separates role selection from role execution. Select (and its
per-role convenience wrappers) assigns the job's role and records the entry
point to invoke, but does not invoke it — that only happens when the
Transaction List starts the Transaction by calling Run. This split exists
so role_present queries against not-yet-running, committed transactions
(spec.md's system-update-deduplication scenario) observe the role before
the underlying engine operation — which may spawn a helper — has begun.
*/
package transaction
