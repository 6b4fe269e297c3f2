package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/carousell/ct-go/pkg/workerpool"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

// Scheduler owns the analysis job lifecycle. Submit is non-blocking: it
// persists the job as queued and nudges the dispatch goroutine, which claims
// jobs one by one and hands them to a bounded worker pool. Only the dispatch
// goroutine ever blocks on a full pool.
type Scheduler interface {
	Submit(ctx context.Context, params models.JobParams) (*models.AIJob, error)
	Status(ctx context.Context, id string) (*models.AIJob, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type scheduler struct {
	jobRepo  mongodb.AIJobRepository
	analyzer Analyzer
	cfg      config.SchedulerConfig

	validate   *validator.Validate
	metrics    *prometheus.HistogramVec
	workerPool workerpool.Pool
	wake       chan struct{}
	done       chan struct{}
	stopped    chan struct{}
}

func NewScheduler(
	jobRepo mongodb.AIJobRepository,
	analyzer Analyzer,
	cfg config.SchedulerConfig,
) (Scheduler, error) {
	metrics, err := util.GetHistogramVec("analysis_jobs_processed", "status", "kind")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}

	return &scheduler{
		jobRepo:    jobRepo,
		analyzer:   analyzer,
		cfg:        cfg,
		validate:   validator.New(),
		metrics:    metrics,
		workerPool: workerpool.New(cfg.Workers),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}, nil
}

func (s *scheduler) Submit(ctx context.Context, params models.JobParams) (*models.AIJob, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid job params: %w", err)
	}

	job := &models.AIJob{
		ID:     uuid.NewString(),
		Params: params,
	}
	if err := s.jobRepo.Insert(ctx, job); err != nil {
		return nil, err
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}

	log.Infow(ctx, "analysis job queued",
		"job_id", job.ID,
		"kind", params.Kind,
		"group_id", params.GroupID,
	)
	return job, nil
}

func (s *scheduler) Status(ctx context.Context, id string) (*models.AIJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

func (s *scheduler) Start(ctx context.Context) error {
	log.Infow(ctx, "starting analysis scheduler", "workers", s.cfg.Workers)
	go s.dispatchLoop()
	return nil
}

// dispatchLoop drains the queued backlog whenever Submit nudges it, and on a
// timer as a safety net for jobs queued by a previous run.
func (s *scheduler) dispatchLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		s.drainQueue()

		select {
		case <-s.done:
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

func (s *scheduler) drainQueue() {
	ctx := context.Background()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		job, err := s.jobRepo.NextQueued(ctx)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				log.Errorw(ctx, "failed to poll queued jobs", "error", err)
			}
			return
		}

		claimed, err := s.jobRepo.ClaimRunning(ctx, job.ID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				log.Errorw(ctx, "failed to claim job", "job_id", job.ID, "error", err)
			}
			continue
		}

		s.workerPool.Run(func() {
			s.execute(*claimed)
		})
	}
}

func (s *scheduler) execute(job models.AIJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.run(ctx, job)
	duration := time.Since(start)

	// The job context may already be expired, which is exactly when the
	// terminal write matters most.
	writeCtx, writeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer writeCancel()

	status := "success"
	if err != nil {
		status = "failure"
		log.Errorw(ctx, "analysis job failed",
			"job_id", job.ID,
			"kind", job.Params.Kind,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		if failErr := s.jobRepo.Fail(writeCtx, job.ID, err.Error()); failErr != nil && !errors.Is(failErr, models.ErrNotFound) {
			log.Errorw(ctx, "failed to record job failure", "job_id", job.ID, "error", failErr)
		}
	} else {
		log.Infow(ctx, "analysis job completed",
			"job_id", job.ID,
			"kind", job.Params.Kind,
			"duration_ms", duration.Milliseconds(),
		)
		if compErr := s.jobRepo.Complete(writeCtx, job.ID, result); compErr != nil && !errors.Is(compErr, models.ErrNotFound) {
			log.Errorw(ctx, "failed to record job completion", "job_id", job.ID, "error", compErr)
		}
	}

	s.metrics.
		WithLabelValues(status, string(job.Params.Kind)).
		Observe(duration.Seconds())
}

func (s *scheduler) run(ctx context.Context, job models.AIJob) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PANIC RECOVER: %+v", r)
		}
	}()
	return s.analyzer.Run(ctx, job.Params)
}

// Stop drains the pool for at most the configured grace period, then marks
// whatever is still queued or running as failed so a restart starts clean.
func (s *scheduler) Stop(ctx context.Context) error {
	log.Infow(ctx, "stopping analysis scheduler")
	close(s.done)
	<-s.stopped

	drained := make(chan struct{})
	go func() {
		s.workerPool.Close()
		s.workerPool.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(s.cfg.DrainGrace):
		log.Warnw(ctx, "drain grace expired with jobs still running")
	}

	count, err := s.jobRepo.FailActive(ctx, models.ErrShutdown.Error())
	if err != nil {
		return err
	}
	if count > 0 {
		log.Warnw(ctx, "failed unfinished jobs on shutdown", "count", count)
	}
	return nil
}
