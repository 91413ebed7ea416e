package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/saxa/pkbrokerd/internal/protocol"
)

// state models the supervisor's lifecycle as a small machine so every
// error path is total, per spec.md §9.
type state int

const (
	stateIdle state = iota
	stateSpawning
	stateRunning
	stateKilling
	stateExited
)

// LineFunc is called once per complete line delivered on either stream.
// Partial lines still buffered at EOF are flushed as a final call.
type LineFunc func(stream protocol.Stream, line string)

// ExitFunc is called exactly once when the child exits, carrying its exit
// code (-1 if it could not be determined, e.g. killed by a signal).
type ExitFunc func(code int, err error)

// Supervisor wraps one child process. It is not reusable: Launch may be
// called at most once per instance.
type Supervisor struct {
	OnLine LineFunc
	OnExit ExitFunc

	logger zerolog.Logger

	mu    sync.Mutex
	state state
	cmd   *exec.Cmd

	wg sync.Once
}

// New creates a Supervisor that logs through logger.
func New(logger zerolog.Logger) *Supervisor {
	return &Supervisor{logger: logger, state: stateIdle}
}

// Launch spawns the child running name with args, begins asynchronous
// line-delimited capture of both output streams, and arms a one-shot exit
// notification. It returns an error if the child could not be spawned;
// this corresponds to the internal-error taxonomy entry in spec.md §7.
//
// Launch panics if called more than once on the same Supervisor: reusing a
// Supervisor for a second child is a programming error, not a runtime
// condition a caller can recover from.
func (s *Supervisor) Launch(ctx context.Context, name string, args ...string) error {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		panic("supervisor: Launch called more than once")
	}
	s.state = stateSpawning
	s.mu.Unlock()

	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setState(stateExited)
		return fmt.Errorf("supervisor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.setState(stateExited)
		return fmt.Errorf("supervisor: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		s.setState(stateExited)
		return fmt.Errorf("supervisor: spawn %s: %w", name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.state = stateRunning
	s.mu.Unlock()

	var streamWG sync.WaitGroup
	streamWG.Add(2)
	go s.drain(&streamWG, protocol.Output, stdout)
	go s.drain(&streamWG, protocol.Error, stderr)

	go func() {
		streamWG.Wait()
		err := cmd.Wait()
		s.setState(stateExited)

		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		if s.OnExit != nil {
			s.OnExit(code, err)
		}
	}()

	return nil
}

func (s *Supervisor) drain(wg *sync.WaitGroup, stream protocol.Stream, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if s.OnLine != nil {
			s.OnLine(stream, line)
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn().Err(err).Str("stream", stream.String()).Msg("helper stream read error")
	}
}

// Kill sends a termination signal to the child. It is idempotent and a
// no-op if no child is currently live.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateRunning || s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	s.state = stateKilling
	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("supervisor: signal: %w", err)
	}
	return nil
}

func (s *Supervisor) setState(st state) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
