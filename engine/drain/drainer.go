// Package drain pulls queued thumbnail runs out of the database in FIFO
// batches, claims each one atomically and executes it, pacing between
// items so the downstream services are never bursted.
package drain

import (
	"context"
	"fmt"
	"time"

	"github.com/leokalinowski/purpose-driven-crm/engine/core"
	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// Executor processes a single claimed run to a terminal status.
type Executor interface {
	Execute(ctx context.Context, rn *run.Run) error
}

// Result summarizes one drain pass.
type Result struct {
	Processed int `json:"processed"`
	Remaining int `json:"remaining"`
}

// Drainer works through the generate-thumbnail queue one batch at a time.
type Drainer struct {
	cfg      config.DrainConfig
	repo     run.Repository
	executor Executor

	// kick requests another pass; written non-blocking so a pending
	// request coalesces with at most one in flight.
	kick chan struct{}

	// sleep paces between items; override in tests.
	sleep func(ctx context.Context, d time.Duration)
}

func NewDrainer(cfg config.DrainConfig, repo run.Repository, executor Executor) *Drainer {
	return &Drainer{
		cfg:      cfg,
		repo:     repo,
		executor: executor,
		kick:     make(chan struct{}, 1),
		sleep:    pace,
	}
}

// DrainOnce processes one batch of queued runs. Runs claimed by a
// concurrent drainer are skipped without counting as processed. When
// work remains after the batch, the pacing delay elapses and exactly
// one continuation kick is posted so the supervisor runs the next pass.
func (d *Drainer) DrainOnce(ctx context.Context) (Result, error) {
	log := logger.FromContext(ctx)

	batch, err := d.repo.ListQueued(ctx, run.WorkflowGenerate, d.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("listing queued runs: %w", err)
	}

	processed := 0
	for i, rn := range batch {
		if i > 0 {
			d.sleep(ctx, d.cfg.Pace)
		}
		if ctx.Err() != nil {
			break
		}

		claimed, err := d.repo.ClaimQueued(ctx, rn.ID, d.cfg.Lease)
		if err != nil {
			return Result{Processed: processed}, fmt.Errorf("claiming run %s: %w", rn.ID, err)
		}
		if !claimed {
			log.Debug("run claimed elsewhere, skipping", "run_id", rn.ID)
			continue
		}
		rn.Status = core.StatusRunning

		if err := d.executor.Execute(ctx, rn); err != nil {
			// The executor finalized the run as failed; the drain
			// keeps going through the rest of the batch.
			log.Error("run failed", "run_id", rn.ID, "error", err)
		}
		processed++
	}

	remaining, err := d.repo.CountQueued(ctx, run.WorkflowGenerate)
	if err != nil {
		return Result{Processed: processed}, fmt.Errorf("counting queued runs: %w", err)
	}
	if remaining > 0 {
		// The continuation pass keeps the inter-item spacing across
		// the batch boundary.
		d.sleep(ctx, d.cfg.Pace)
		d.Kick()
	}
	log.Info("drain pass complete", "processed", processed, "remaining", remaining)
	return Result{Processed: processed, Remaining: remaining}, nil
}

// Kick requests a drain pass. Safe from any goroutine; a request that
// finds one already pending is dropped.
func (d *Drainer) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func pace(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
