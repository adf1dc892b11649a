package invoice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = 5 * time.Minute

// Sweeper runs SweepOverdue on a cron schedule.
type Sweeper struct {
	svc     Service
	cron    *cron.Cron
	logger  *logger.Logger
	mu      sync.Mutex
	running bool
}

func NewSweeper(svc Service, schedule string, log *logger.Logger) (*Sweeper, error) {
	s := &Sweeper{
		svc:    svc,
		cron:   cron.New(),
		logger: log,
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("failed to add overdue sweep %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info(context.Background(), "Overdue sweeper started")
}

// Stop waits for a sweep in progress or for ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info(ctx, "Overdue sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	flagged, err := s.svc.SweepOverdue(ctx, time.Now())
	if err != nil {
		s.logger.Error(ctx, "Overdue sweep failed",
			"error", err,
		)
		return
	}
	if flagged > 0 {
		s.logger.Info(ctx, "Overdue sweep completed",
			"flagged", flagged,
		)
	}
}
