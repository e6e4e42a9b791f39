package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunReturnsValue(t *testing.T) {
	p := NewPool("test", testLogger(), WithWorkers(2))
	defer p.Shutdown(context.Background())

	v, err := Run(context.Background(), p, func(ctx context.Context) (string, error) {
		return "hello", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestDoPropagatesError(t *testing.T) {
	p := NewPool("test", testLogger())
	defer p.Shutdown(context.Background())

	boom := errors.New("boom")
	err := p.Do(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool("test", testLogger(), WithWorkers(2), WithQueueSize(16))
	defer p.Shutdown(context.Background())

	var running, peak int32
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			errs <- p.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunHonoursCancelledContext(t *testing.T) {
	p := NewPool("test", testLogger(), WithWorkers(1))
	defer p.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, p, func(ctx context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRecoversPanic(t *testing.T) {
	p := NewPool("test", testLogger(), WithWorkers(1))
	defer p.Shutdown(context.Background())

	_, err := Run(context.Background(), p, func(ctx context.Context) (int, error) { panic("bad") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := NewPool("test", testLogger())
	p.Shutdown(context.Background())

	err := p.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}
