package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitAllBlocksUntilActivitiesReturn(t *testing.T) {
	p := New(context.Background())

	var done int32
	for i := 0; i < 5; i++ {
		p.Start(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&done, 1)
		})
	}
	p.WaitAll()
	assert.Equal(t, int32(5), atomic.LoadInt32(&done))
}

func TestWaitAllWithNoActivitiesReturnsImmediately(t *testing.T) {
	p := New(context.Background())
	finished := make(chan struct{})
	go func() {
		p.WaitAll()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("WaitAll did not return with no activities")
	}
}

func TestCancelSignalsActivityContext(t *testing.T) {
	p := New(context.Background())
	canceled := make(chan struct{})
	p.Start(func(ctx context.Context) {
		<-ctx.Done()
		close(canceled)
	})
	p.Cancel()
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("activity context was not canceled")
	}
	p.WaitAll()
}
