/*
Package ipc is the daemon's external collaborator: the thin facade spec.md
§4.6 says the Transaction List registers each new Transaction with. Per
spec.md's Non-goals, this module does not implement a real transport (no
D-Bus, no gRPC service); it is an in-process stand-in that exercises the
same registration and notification wiring a real IPC surface would need,
so cmd/pkbrokerd has something concrete to construct. The txlist tests do
not use it; they pass a nil Collaborator.
*/
package ipc
