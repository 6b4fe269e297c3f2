package scheduler

import (
	"context"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
)

// Sweeper fails running jobs whose worker died without reporting, e.g. after
// a crash of a previous instance. The repository's filtered update keeps the
// sweep races-safe against workers finishing normally.
type Sweeper interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type sweeper struct {
	jobRepo mongodb.AIJobRepository
	cfg     config.SchedulerConfig
	done    chan struct{}
	stopped chan struct{}
}

func NewSweeper(jobRepo mongodb.AIJobRepository, cfg config.SchedulerConfig) Sweeper {
	return &sweeper{
		jobRepo: jobRepo,
		cfg:     cfg,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *sweeper) Start(ctx context.Context) error {
	go s.loop()
	return nil
}

func (s *sweeper) loop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := s.jobRepo.FailStuck(ctx, s.cfg.JobTimeout)
	if err != nil {
		log.Errorw(ctx, "job sweep failed", "error", err)
		return
	}
	if count > 0 {
		log.Warnw(ctx, "swept stuck analysis jobs", "count", count)
	}
}

func (s *sweeper) Stop(ctx context.Context) error {
	close(s.done)
	<-s.stopped
	return nil
}
