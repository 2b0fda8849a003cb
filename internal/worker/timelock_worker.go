package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/treasury-governance/internal/observability"
	"go.uber.org/zap"
)

const timelockWorkerName = "timelock_sweep"

// Sweeper closes proposals whose timelock or voting period has run out.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// TimelockWorker executes passed proposals once their timelock elapses and closes
// proposals whose voting period ended.
type TimelockWorker struct {
	svc      Sweeper
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTimelockWorker constructs a worker with a default one-minute interval.
func NewTimelockWorker(svc Sweeper) *TimelockWorker {
	return &TimelockWorker{
		svc:      svc,
		interval: time.Minute,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *TimelockWorker) WithInterval(interval time.Duration) *TimelockWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *TimelockWorker) Start(ctx context.Context) {
	defer close(w.done)
	zap.L().Info("timelock worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Catch up on anything that came due while the process was down.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("timelock worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("timelock worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the worker loop and waits for an in-flight sweep to finish.
func (w *TimelockWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.done
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *TimelockWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *TimelockWorker) runOnce(ctx context.Context) {
	closed, err := w.svc.Sweep(ctx)
	if err != nil {
		observability.IncrementWorkerRun(timelockWorkerName, "failed")
		zap.L().Error("timelock sweep failed", zap.Int("closed", closed), zap.Error(err))
		return
	}
	observability.IncrementWorkerRun(timelockWorkerName, "success")
	if closed > 0 {
		zap.L().Info("timelock sweep closed proposals", zap.Int("closed", closed))
	}
}
