/*
Package protocol decodes the tab-delimited line protocol a helper process
speaks on its two output streams into typed Event values.

The parser is pure and stateless: Parse takes one line (no trailing
newline) plus the stream it arrived on and returns zero or one Event. Lines
without a tab delimiter are non-events, except the zero-field
"no-percentage-updates" command on the error stream. A line whose command is unknown,
whose field count does not match, or whose boolean field is malformed is
reported through the returned error so the caller can log it at warning
level; it never produces an Event and never fails the owning job.
*/
package protocol
