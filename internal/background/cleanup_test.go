package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSweeper struct {
	calls     atomic.Int64
	retention atomic.Int64
	err       error
	swept     chan struct{}
}

func (f *fakeSweeper) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	f.calls.Add(1)
	f.retention.Store(int64(retention))
	select {
	case f.swept <- struct{}{}:
	default:
	}
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupManager_SweepsImmediatelyOnStart(t *testing.T) {
	sweeper := &fakeSweeper{swept: make(chan struct{}, 1)}
	cm := NewCleanupManager(sweeper, discardLogger(), time.Hour, 30*24*time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	select {
	case <-sweeper.swept:
	case <-time.After(5 * time.Second):
		t.Fatal("no sweep before the first tick")
	}

	cm.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop")
	}

	assert.Equal(t, int64(1), sweeper.calls.Load())
	assert.Equal(t, int64(30*24*time.Hour), sweeper.retention.Load())
}

func TestCleanupManager_TicksUntilStopped(t *testing.T) {
	sweeper := &fakeSweeper{swept: make(chan struct{}, 16)}
	cm := NewCleanupManager(sweeper, discardLogger(), 10*time.Millisecond, time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	// Startup sweep plus at least two ticks.
	for i := 0; i < 3; i++ {
		select {
		case <-sweeper.swept:
		case <-time.After(5 * time.Second):
			t.Fatalf("sweep %d never happened", i)
		}
	}

	cm.Stop()
	<-done

	assert.GreaterOrEqual(t, sweeper.calls.Load(), int64(3))
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	sweeper := &fakeSweeper{swept: make(chan struct{}, 1), err: errors.New("db down")}
	cm := NewCleanupManager(sweeper, discardLogger(), time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	<-sweeper.swept
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not observe context cancellation")
	}
}
