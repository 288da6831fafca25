package drain

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/leokalinowski/purpose-driven-crm/engine/run"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// Reaper periodically sweeps runs whose lease expired while running.
// Drained runs go back to the queue; webhook-triggered runs are failed
// because their trigger cannot be replayed. Requeued work kicks the
// drainer so it is picked up promptly.
type Reaper struct {
	repo    run.Repository
	drainer *Drainer
	spec    string
	cron    *cron.Cron
}

func NewReaper(repo run.Repository, drainer *Drainer, spec string) *Reaper {
	return &Reaper{repo: repo, drainer: drainer, spec: spec}
}

// Start schedules the sweep. The returned error only reflects an
// invalid cron spec.
func (r *Reaper) Start(ctx context.Context) error {
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.spec, func() { r.sweep(ctx) }); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Reaper) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)
	requeued, failed, err := r.repo.SweepExpiredLeases(ctx, time.Now().UTC())
	if err != nil {
		log.Error("lease sweep failed", "error", err)
		return
	}
	if requeued > 0 || failed > 0 {
		log.Warn("swept expired leases", "requeued", requeued, "failed", failed)
	}
	if requeued > 0 {
		r.drainer.Kick()
	}
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
