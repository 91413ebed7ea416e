package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saxa/pkbrokerd/internal/jobtypes"
)

func newTestEngine(t *testing.T, registry *Registry) *Engine {
	t.Helper()
	e := New(context.Background(), registry, zerolog.Nop())
	e.SetDeferTick(time.Millisecond)
	return e
}

func drain(t *testing.T, sub <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return got
			}
			got = append(got, ev)
			if _, fin := ev.(Finished); fin {
				return got
			}
		case <-deadline:
			return got
		}
	}
}

func TestLoadUnknownPluginFails(t *testing.T) {
	registry := NewRegistry()
	e := newTestEngine(t, registry)

	err := e.Load("does-not-exist")
	require.ErrorIs(t, err, ErrPluginNotFound)
}

func TestLoadTwicePanics(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", &Descriptor{})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	assert.Panics(t, func() { _ = e.Load("noop") })
}

func TestRoleAssignedOnceAndSecondAssignmentPanics(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", &Descriptor{
		SearchName: func(ctx context.Context, e *Engine, filter, query string) {
			e.Finish(jobtypes.ExitSuccess)
		},
	})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	sub := e.Subscribe()
	e.SearchName(context.Background(), "none", "glibc")
	drain(t, sub, time.Second)

	assert.Equal(t, jobtypes.RoleQuery, e.Role())
	assert.Panics(t, func() {
		e.GetUpdates(context.Background())
	})
}

func TestOperationWithNoDescriptorSlotIsNotSupported(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", &Descriptor{})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	sub := e.Subscribe()
	e.GetUpdates(context.Background())
	got := drain(t, sub, time.Second)

	var sawError bool
	var sawFinished jobtypes.Exit
	for _, ev := range got {
		switch v := ev.(type) {
		case ErrorCode:
			sawError = true
			assert.Equal(t, jobtypes.ErrorCodeNotSupported, v.Code)
		case Finished:
			sawFinished = v.Exit
		}
	}
	assert.True(t, sawError)
	assert.Equal(t, jobtypes.ExitFailed, sawFinished)
}

func TestEmitErrorIsStickyAcrossFinish(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", &Descriptor{
		InstallPackage: func(ctx context.Context, e *Engine, id jobtypes.PackageID) {
			e.EmitError(jobtypes.ErrorCodeInternalError, "boom")
			e.Finish(jobtypes.ExitSuccess)
		},
	})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	sub := e.Subscribe()
	e.Install(context.Background(), "glibc;2.39-1;x86_64;fedora")
	got := drain(t, sub, time.Second)

	fin, ok := got[len(got)-1].(Finished)
	require.True(t, ok)
	assert.Equal(t, jobtypes.ExitFailed, fin.Exit, "a latched error must not be downgraded by Finish(success)")
}

func TestFinishIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", &Descriptor{
		InstallPackage: func(ctx context.Context, e *Engine, id jobtypes.PackageID) {
			e.Finish(jobtypes.ExitSuccess)
			e.Finish(jobtypes.ExitFailed) // must be a no-op
		},
	})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	sub := e.Subscribe()
	e.Install(context.Background(), "glibc;2.39-1;x86_64;fedora")
	got := drain(t, sub, time.Second)

	var finishedCount int
	var last jobtypes.Exit
	for _, ev := range got {
		if fin, ok := ev.(Finished); ok {
			finishedCount++
			last = fin.Exit
		}
	}
	assert.Equal(t, 1, finishedCount, "Finished must be published exactly once")
	assert.Equal(t, jobtypes.ExitSuccess, last)
}

func TestColdplugMemoizesLastProgressAndResetsAfterFinish(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", &Descriptor{
		SearchName: func(ctx context.Context, e *Engine, filter, query string) {
			e.EmitPackage("installed", "glibc;2.39-1;x86_64;fedora", "summary")
			e.EmitPercent(42)
			e.EmitSubPercent(7)
			e.Finish(jobtypes.ExitSuccess)
		},
	})
	e := newTestEngine(t, registry)
	// Keep the Finished deferral well past the sleep below, so the check
	// runs before Finished is published.
	e.SetDeferTick(200 * time.Millisecond)
	require.NoError(t, e.Load("noop"))

	sub := e.Subscribe()
	e.SearchName(context.Background(), "none", "glibc")

	// Before Finished is published, coldplug reflects the last values.
	time.Sleep(5 * time.Millisecond)
	percent, havePercent, subPercent, haveSubPercent, pkg, havePkg := e.Coldplug()
	assert.True(t, havePercent)
	assert.Equal(t, uint(42), percent)
	assert.True(t, haveSubPercent)
	assert.Equal(t, uint(7), subPercent)
	assert.True(t, havePkg)
	assert.Equal(t, jobtypes.PackageID("glibc;2.39-1;x86_64;fedora"), pkg)

	drain(t, sub, time.Second)

	// After Finished, the supplemented coldplug-reset behavior clears it.
	_, havePercent, _, haveSubPercent, _, havePkg = e.Coldplug()
	assert.False(t, havePercent)
	assert.False(t, haveSubPercent)
	assert.False(t, havePkg)
}

func TestCancelRefusedWhenNotKillable(t *testing.T) {
	registry := NewRegistry()
	var canceled bool
	registry.Register("noop", &Descriptor{
		CancelJobTry: func(e *Engine) error { canceled = true; return nil },
	})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	assert.False(t, e.Cancel())
	assert.False(t, canceled)
}

func TestCancelRefusedWithoutAllowInterrupt(t *testing.T) {
	registry := NewRegistry()
	var canceled bool
	registry.Register("noop", &Descriptor{
		CancelJobTry: func(e *Engine) error { canceled = true; return nil },
		InstallPackage: func(ctx context.Context, e *Engine, id jobtypes.PackageID) {
			_ = e.SpawnHelper(ctx, "/bin/sh", "-c", "sleep 1")
		},
	})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	sub := e.Subscribe()
	e.Install(context.Background(), "glibc;2.39-1;x86_64;fedora")

	// The dummy helper script never emits allow-interrupt, so killable
	// stays false and Cancel should be refused throughout its run.
	time.Sleep(20 * time.Millisecond)
	assert.False(t, e.Cancel())
	assert.False(t, canceled)

	_ = sub
}

func TestIntrospectActionsFallsBackToSlots(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", &Descriptor{
		InstallPackage: func(ctx context.Context, e *Engine, id jobtypes.PackageID) {},
		RemovePackage:  func(ctx context.Context, e *Engine, id jobtypes.PackageID, allowDeps bool) {},
	})
	e := newTestEngine(t, registry)
	require.NoError(t, e.Load("noop"))

	actions := e.IntrospectActions()
	assert.ElementsMatch(t, []jobtypes.Role{jobtypes.RoleInstall, jobtypes.RoleRemove}, actions)
}
