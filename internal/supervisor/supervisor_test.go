package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saxa/pkbrokerd/internal/protocol"
)

type capturedLine struct {
	stream protocol.Stream
	line   string
}

func TestLaunchCapturesBothStreamsAndExitCode(t *testing.T) {
	sup := New(zerolog.Nop())

	lines := make(chan capturedLine, 8)
	sup.OnLine = func(stream protocol.Stream, line string) {
		lines <- capturedLine{stream: stream, line: line}
	}
	exitCh := make(chan int, 1)
	sup.OnExit = func(code int, _ error) { exitCh <- code }

	script := `echo "to stdout"; echo "to stderr" 1>&2; exit 0`
	err := sup.Launch(context.Background(), "/bin/sh", "-c", script)
	require.NoError(t, err)

	var got []capturedLine
	for i := 0; i < 2; i++ {
		select {
		case l := <-lines:
			got = append(got, l)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for lines")
		}
	}

	var sawOut, sawErr bool
	for _, l := range got {
		if l.stream == protocol.Output && l.line == "to stdout" {
			sawOut = true
		}
		if l.stream == protocol.Error && l.line == "to stderr" {
			sawErr = true
		}
	}
	assert.True(t, sawOut, "expected an output-stream line")
	assert.True(t, sawErr, "expected an error-stream line")

	select {
	case code := <-exitCh:
		assert.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit callback")
	}
}

func TestLaunchNonZeroExit(t *testing.T) {
	sup := New(zerolog.Nop())
	exitCh := make(chan int, 1)
	sup.OnExit = func(code int, _ error) { exitCh <- code }

	err := sup.Launch(context.Background(), "/bin/sh", "-c", "exit 7")
	require.NoError(t, err)

	select {
	case code := <-exitCh:
		assert.Equal(t, 7, code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit callback")
	}
}

func TestLaunchTwiceProducesPanic(t *testing.T) {
	sup := New(zerolog.Nop())
	require.NoError(t, sup.Launch(context.Background(), "/bin/sh", "-c", "sleep 1"))

	assert.Panics(t, func() {
		_ = sup.Launch(context.Background(), "/bin/sh", "-c", "exit 0")
	})
	sup.Kill()
}

func TestKillIsIdempotentWhenNotRunning(t *testing.T) {
	sup := New(zerolog.Nop())
	assert.NoError(t, sup.Kill())
}

func TestKillSignalsRunningChild(t *testing.T) {
	sup := New(zerolog.Nop())
	exitCh := make(chan int, 1)
	sup.OnExit = func(code int, _ error) { exitCh <- code }

	err := sup.Launch(context.Background(), "/bin/sh", "-c", "sleep 5")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, sup.Kill())

	select {
	case <-exitCh:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for killed child to exit")
	}
}
