package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
)

// Sweeper runs one publication pass. Satisfied by Pipeline.
type Sweeper interface {
	Sweep(ctx context.Context) (SweepSummary, error)
}

// Runner drives the pipeline on a fixed interval for a resident process.
// Start and Stop are idempotent and the pair is restartable; a tick that
// fires while a sweep is still running is skipped.
type Runner struct {
	pipeline Sweeper
	interval time.Duration

	mu       sync.Mutex
	cron     *cron.Cron
	inFlight atomic.Bool
}

func NewRunner(p Sweeper, interval time.Duration) *Runner {
	return &Runner{pipeline: p, interval: interval}
}

func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return
	}
	c := cron.New()
	c.AddFunc(fmt.Sprintf("@every %s", r.interval), r.tick)
	c.Start()
	r.cron = c
	slog.Info("scheduler started", "interval", r.interval)
}

// Stop halts the timer. An in-flight sweep is left to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return
	}
	r.cron.Stop()
	r.cron = nil
	slog.Info("scheduler stopped")
}

func (r *Runner) tick() {
	if !r.inFlight.CompareAndSwap(false, true) {
		slog.Debug("sweep still running, skipping tick")
		return
	}
	defer r.inFlight.Store(false)

	summary, err := r.pipeline.Sweep(context.Background())
	if err != nil {
		slog.Error("sweep failed", "error", err)
		return
	}
	if summary.PostsTried > 0 || summary.RepostsTried > 0 {
		slog.Info("sweep complete",
			"posts_tried", summary.PostsTried,
			"reposts_scheduled", summary.RepostsScheduled,
			"reposts_tried", summary.RepostsTried)
	}
}
