package drain

import (
	"context"

	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

// Supervisor owns the background drain loop. Each kick runs one pass;
// a pass that leaves work behind kicks itself, so a deep queue drains
// continuously without any external poller.
type Supervisor struct {
	drainer *Drainer
	done    chan struct{}
}

func NewSupervisor(drainer *Drainer) *Supervisor {
	return &Supervisor{drainer: drainer, done: make(chan struct{})}
}

// Start launches the loop. It exits when ctx is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.done)
	log := logger.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.drainer.kick:
		}
		if _, err := s.drainer.DrainOnce(ctx); err != nil {
			log.Error("drain pass failed", "error", err)
		}
	}
}

// Wait blocks until the loop has exited.
func (s *Supervisor) Wait() {
	<-s.done
}
