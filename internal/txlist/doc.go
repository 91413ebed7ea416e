/*
Package txlist implements the Transaction List of spec.md §4.6: the
process-wide scheduler owning every Transaction, serializing job execution
to at most one running job at a time, and retaining finished transactions
under a grace timer before they are forgotten.

A List is meant to be a per-process singleton; nothing here enforces that
at the type level (ownership is the caller's — typically cmd/pkbrokerd's
wiring — responsibility), matching how the Backend Engine and Transaction
types are likewise plain constructible values rather than self-enforcing
singletons.
*/
package txlist
