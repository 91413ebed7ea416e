package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/saxa/pkbrokerd/internal/jobtypes"
)

// ProtocolError reports a malformed line: unknown command, wrong field
// count, or an unparsable field. Callers log it at warning level and drop
// the line; it never fails the owning job.
type ProtocolError struct {
	Stream Stream
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s stream: %s: %q", e.Stream, e.Reason, e.Line)
}

// Parse decodes a single line (no trailing newline) from the given stream.
// It returns (nil, nil) for a non-event line (no tab delimiter, other than
// the zero-field "no-percentage-updates" command on the error stream),
// (event, nil) for a well-formed line, and (nil, *ProtocolError) for a
// malformed one. An event carrying an invalid package id is dropped: Parse
// returns (nil, *ProtocolError) rather than the event.
func Parse(stream Stream, line string) (Event, error) {
	if !strings.Contains(line, "\t") && !(stream == Error && line == "no-percentage-updates") {
		return nil, nil
	}
	fields := strings.Split(line, "\t")
	command := fields[0]
	args := fields[1:]

	switch stream {
	case Output:
		return parseOutput(command, args, line)
	default:
		return parseError(command, args, line)
	}
}

func parseOutput(command string, args []string, line string) (Event, error) {
	switch command {
	case "package":
		if len(args) != 3 {
			return nil, fieldCountErr(Output, line, "package", 3, len(args))
		}
		id := jobtypes.PackageID(args[1])
		if !id.Valid() {
			return nil, &ProtocolError{Stream: Output, Line: line, Reason: "invalid package id"}
		}
		return PackageEvent{Info: args[0], ID: id, Summary: args[2]}, nil

	case "description":
		if len(args) != 5 {
			return nil, fieldCountErr(Output, line, "description", 5, len(args))
		}
		id := jobtypes.PackageID(args[0])
		if !id.Valid() {
			return nil, &ProtocolError{Stream: Output, Line: line, Reason: "invalid package id"}
		}
		return DescriptionEvent{
			ID:      id,
			Licence: args[1],
			Group:   jobtypes.ParseGroupName(args[2]),
			Text:    args[3],
			URL:     args[4],
		}, nil

	default:
		return nil, &ProtocolError{Stream: Output, Line: line, Reason: "unknown command " + command}
	}
}

func parseError(command string, args []string, line string) (Event, error) {
	switch command {
	case "percentage":
		if len(args) != 1 {
			return nil, fieldCountErr(Error, line, "percentage", 1, len(args))
		}
		p, err := parsePercent(args[0])
		if err != nil {
			return nil, &ProtocolError{Stream: Error, Line: line, Reason: err.Error()}
		}
		return PercentEvent{Percent: p}, nil

	case "subpercentage":
		if len(args) != 1 {
			return nil, fieldCountErr(Error, line, "subpercentage", 1, len(args))
		}
		p, err := parsePercent(args[0])
		if err != nil {
			return nil, &ProtocolError{Stream: Error, Line: line, Reason: err.Error()}
		}
		return SubPercentEvent{Percent: p}, nil

	case "error":
		if len(args) != 2 {
			return nil, fieldCountErr(Error, line, "error", 2, len(args))
		}
		return ErrorCodeEvent{Code: args[0], Message: args[1]}, nil

	case "requirerestart":
		if len(args) != 2 {
			return nil, fieldCountErr(Error, line, "requirerestart", 2, len(args))
		}
		return RestartEvent{Kind: args[0], Detail: args[1]}, nil

	case "status":
		if len(args) != 1 {
			return nil, fieldCountErr(Error, line, "status", 1, len(args))
		}
		return StatusEvent{Status: jobtypes.Status(args[0])}, nil

	case "allow-interrupt":
		if len(args) != 1 {
			return nil, fieldCountErr(Error, line, "allow-interrupt", 1, len(args))
		}
		switch args[0] {
		case "true":
			return AllowInterruptEvent{Allow: true}, nil
		case "false":
			return AllowInterruptEvent{Allow: false}, nil
		default:
			return nil, &ProtocolError{Stream: Error, Line: line, Reason: "malformed bool " + args[0]}
		}

	case "no-percentage-updates":
		if len(args) != 0 {
			return nil, fieldCountErr(Error, line, "no-percentage-updates", 0, len(args))
		}
		return NoPercentEvent{}, nil

	default:
		return nil, &ProtocolError{Stream: Error, Line: line, Reason: "unknown command " + command}
	}
}

func parsePercent(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed percentage %q", s)
	}
	if v > 100 {
		return 0, fmt.Errorf("percentage %d out of range", v)
	}
	return uint(v), nil
}

func fieldCountErr(stream Stream, line, command string, want, got int) *ProtocolError {
	return &ProtocolError{
		Stream: stream,
		Line:   line,
		Reason: fmt.Sprintf("%s expects %d fields, got %d", command, want, got),
	}
}

// Render reconstructs the canonical wire line for event as it would appear
// on stream. It is the inverse of Parse and is used to pin the round-trip
// property: every well-formed line parses to an event whose rendered form
// equals the input. The one exception is a description line with an
// unrecognized group name, which Parse collapses to "unknown".
func Render(stream Stream, event Event) (string, error) {
	switch e := event.(type) {
	case PackageEvent:
		return strings.Join([]string{"package", e.Info, string(e.ID), e.Summary}, "\t"), nil
	case DescriptionEvent:
		return strings.Join([]string{"description", string(e.ID), e.Licence, string(e.Group), e.Text, e.URL}, "\t"), nil
	case PercentEvent:
		return fmt.Sprintf("percentage\t%d", e.Percent), nil
	case SubPercentEvent:
		return fmt.Sprintf("subpercentage\t%d", e.Percent), nil
	case ErrorCodeEvent:
		return strings.Join([]string{"error", e.Code, e.Message}, "\t"), nil
	case RestartEvent:
		return strings.Join([]string{"requirerestart", e.Kind, e.Detail}, "\t"), nil
	case StatusEvent:
		return strings.Join([]string{"status", string(e.Status)}, "\t"), nil
	case AllowInterruptEvent:
		if e.Allow {
			return "allow-interrupt\ttrue", nil
		}
		return "allow-interrupt\tfalse", nil
	case NoPercentEvent:
		return "no-percentage-updates", nil
	default:
		return "", fmt.Errorf("unrenderable event type %T", event)
	}
}
