package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestRun_SweepsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32

	done := make(chan struct{})
	go func() {
		Run(ctx, 5*time.Millisecond, func(ctx context.Context) error {
			if atomic.AddInt32(&calls, 1) == 3 {
				cancel()
			}
			return errors.New("db down")
		}, zaptest.NewLogger(t))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestRun_SweepsDoNotOverlap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	var running, overlapped int32

	Run(ctx, time.Millisecond, func(ctx context.Context) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}, zaptest.NewLogger(t))

	assert.Equal(t, int32(0), atomic.LoadInt32(&overlapped))
}
