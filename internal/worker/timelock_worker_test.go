package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

func TestTimelockWorkerSweepsImmediatelyAndOnTick(t *testing.T) {
	sweeper := &countingSweeper{}
	stop := NewTimelockWorker(sweeper).WithInterval(10 * time.Millisecond).Run(context.Background())

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stop()

	calls := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, sweeper.calls.Load(), "no sweeps after stop")

	assert.NotPanics(t, stop, "stop is idempotent")
}

func TestTimelockWorkerKeepsRunningAfterFailure(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("store unavailable")}
	ctx, cancel := context.WithCancel(context.Background())
	w := NewTimelockWorker(sweeper).WithInterval(10 * time.Millisecond)
	stop := w.Run(ctx)

	require.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	stop()
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	w := NewTimelockWorker(&countingSweeper{}).WithInterval(0)
	assert.Equal(t, time.Minute, w.interval)
}
