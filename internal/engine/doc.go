/*
Package engine implements the Backend Engine: the stateful executor of a
single job (spec.md §4.4). It loads a named plugin, holds per-job state
(role, status, progress, exit outcome), owns at most one Helper Supervisor
and a Worker Pool, and emits a typed event stream to subscribers.

The engine composes rather than inherits, per spec.md §9: a Transaction
holds an Engine, an Engine holds a *supervisor.Supervisor and a
*workerpool.Pool, and a Descriptor (a small record of optional function
slots) stands in for the plugin's capability set. There is no class
hierarchy; optional behavior is expressed as nil-checked struct fields,
following the teacher's composition of Worker + SecretsHandler +
VolumesHandler + HealthMonitor in cuemby/warren's pkg/worker.
*/
package engine
