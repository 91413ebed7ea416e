package txlist

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saxa/pkbrokerd/internal/engine"
	"github.com/saxa/pkbrokerd/internal/jobtypes"
)

func newTestList(t *testing.T, grace time.Duration) (*List, *engine.Registry) {
	t.Helper()
	registry := engine.NewRegistry()
	registry.Register("noop", &engine.Descriptor{
		SearchName: func(ctx context.Context, e *engine.Engine, filter, query string) {
			e.Finish(jobtypes.ExitSuccess)
		},
		UpdateSystem: func(ctx context.Context, e *engine.Engine) {
			e.Finish(jobtypes.ExitSuccess)
		},
	})
	l := New(context.Background(), registry, zerolog.Nop(), grace, nil)
	return l, registry
}

func mustCreate(t *testing.T, l *List, tid jobtypes.TID) {
	t.Helper()
	tx, err := l.Create(tid)
	require.NoError(t, err)
	require.NoError(t, tx.Engine().Load("noop"))
	tx.Engine().SetDeferTick(time.Millisecond)
}

func TestCreateRejectsDuplicateTID(t *testing.T) {
	l, _ := newTestList(t, time.Second)
	mustCreate(t, l, "a")
	_, err := l.Create("a")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCommitStartsSoleRunningTransaction(t *testing.T) {
	l, _ := newTestList(t, time.Second)
	mustCreate(t, l, "a")
	tx, _ := l.Lookup("a")
	tx.SelectSearchName("none", "glibc")

	require.NoError(t, l.Commit("a"))
	require.Eventually(t, tx.Running, time.Second, time.Millisecond)
}

func TestOnlyOneTransactionRunsAtATime(t *testing.T) {
	l, _ := newTestList(t, time.Second)
	mustCreate(t, l, "a")
	mustCreate(t, l, "b")
	txA, _ := l.Lookup("a")
	txB, _ := l.Lookup("b")
	txA.SelectSearchName("none", "glibc")
	txB.SelectSearchName("none", "vim")

	require.NoError(t, l.Commit("a"))
	require.NoError(t, l.Commit("b"))

	assert.True(t, txA.Running() || txA.Finished())
	assert.False(t, txB.Running(), "b must not start while a is running or queued ahead")
}

func TestFinishedTransactionDispatchesNext(t *testing.T) {
	l, _ := newTestList(t, 200*time.Millisecond)
	mustCreate(t, l, "a")
	mustCreate(t, l, "b")
	txA, _ := l.Lookup("a")
	txB, _ := l.Lookup("b")
	txA.SelectSearchName("none", "glibc")
	txB.SelectSearchName("none", "vim")

	require.NoError(t, l.Commit("a"))
	require.NoError(t, l.Commit("b"))

	require.Eventually(t, txA.Finished, time.Second, time.Millisecond)
	require.Eventually(t, txB.Running, time.Second, time.Millisecond)
}

func TestRemoveRefusesFinishedTransaction(t *testing.T) {
	l, _ := newTestList(t, time.Second)
	mustCreate(t, l, "a")
	tx, _ := l.Lookup("a")
	tx.SelectSearchName("none", "glibc")
	require.NoError(t, l.Commit("a"))

	require.Eventually(t, tx.Finished, time.Second, time.Millisecond)
	err := l.Remove("a")
	assert.ErrorIs(t, err, ErrFinishedRetained)
}

func TestRemoveAllowsUncommittedTransaction(t *testing.T) {
	l, _ := newTestList(t, time.Second)
	mustCreate(t, l, "a")
	assert.NoError(t, l.Remove("a"))
	_, ok := l.Lookup("a")
	assert.False(t, ok)
}

func TestGraceTimerExpiresFinishedTransaction(t *testing.T) {
	l, _ := newTestList(t, 20*time.Millisecond)
	mustCreate(t, l, "a")
	tx, _ := l.Lookup("a")
	tx.SelectSearchName("none", "glibc")
	require.NoError(t, l.Commit("a"))

	require.Eventually(t, tx.Finished, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := l.Lookup("a")
		return !ok
	}, time.Second, time.Millisecond)
}

func TestRolePresentExcludesFinishedTransactions(t *testing.T) {
	l, _ := newTestList(t, 2*time.Second)
	mustCreate(t, l, "a")
	tx, _ := l.Lookup("a")
	tx.SelectUpdateSystem()
	require.NoError(t, l.Commit("a"))

	assert.True(t, l.RolePresent(jobtypes.RoleSystemUpdate))
	require.Eventually(t, tx.Finished, time.Second, time.Millisecond)
	assert.False(t, l.RolePresent(jobtypes.RoleSystemUpdate), "a finished-but-retained entry must not count")
}

func TestRolePresentRejectsDuplicateSystemUpdate(t *testing.T) {
	l, _ := newTestList(t, 2*time.Second)
	mustCreate(t, l, "a")
	mustCreate(t, l, "b")
	txA, _ := l.Lookup("a")
	txB, _ := l.Lookup("b")
	txA.SelectUpdateSystem()
	txB.SelectUpdateSystem()

	require.NoError(t, l.Commit("a"))
	require.NoError(t, l.Commit("b"))

	assert.True(t, l.RolePresent(jobtypes.RoleSystemUpdate))
}

func TestGetArrayExcludesUncommittedAndFinished(t *testing.T) {
	l, _ := newTestList(t, 2*time.Second)
	mustCreate(t, l, "a")
	mustCreate(t, l, "b")
	txA, _ := l.Lookup("a")
	txB, _ := l.Lookup("b")
	txA.SelectSearchName("none", "glibc")
	txB.SelectSearchName("none", "vim")

	assert.Empty(t, l.GetArray(), "nothing committed yet")

	require.NoError(t, l.Commit("a"))
	require.NoError(t, l.Commit("b"))

	arr := l.GetArray()
	assert.Contains(t, arr, jobtypes.TID("b"), "a may have already finished; b should still be queued or running")

	require.Eventually(t, txA.Finished, time.Second, time.Millisecond)
	assert.NotContains(t, l.GetArray(), jobtypes.TID("a"), "a finished entry retained under grace must not be listed")
}

func TestGetSizeCountsEverything(t *testing.T) {
	l, _ := newTestList(t, 2*time.Second)
	mustCreate(t, l, "a")
	mustCreate(t, l, "b")
	assert.Equal(t, 2, l.GetSize())

	tx, _ := l.Lookup("a")
	tx.SelectSearchName("none", "glibc")
	require.NoError(t, l.Commit("a"))
	require.Eventually(t, tx.Finished, time.Second, time.Millisecond)

	// a is finished but retained under grace; still counted.
	assert.Equal(t, 2, l.GetSize())
}

func TestChangedPublishedOnMutations(t *testing.T) {
	l, _ := newTestList(t, 2*time.Second)
	sub := l.Subscribe()
	defer l.Unsubscribe(sub)

	mustCreate(t, l, "a")
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("expected a Changed notification on Create")
	}
}
