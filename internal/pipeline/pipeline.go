package pipeline

import (
	"context"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"go.uber.org/fx"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/lock"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
	"github.com/ndtrung-ct/signal-reactor/internal/scheduler"
	"github.com/ndtrung-ct/signal-reactor/internal/transport"
	"github.com/ndtrung-ct/signal-reactor/internal/usecase"
)

// StartPipeline ties the event pipeline to the fx lifecycle. Startup order
// matters: the instance lock comes first so a second instance dies before it
// touches the transport, and the scheduler starts before the transport so no
// event can observe a half-started system. Shutdown runs in reverse.
func StartPipeline(
	lc fx.Lifecycle,
	conf *config.Config,
	instanceLock lock.InstanceLock,
	adapter transport.Adapter,
	events usecase.EventUsecase,
	sched scheduler.Scheduler,
	sweeper scheduler.Sweeper,
	messageRepo mongodb.MessageRepository,
	groupRepo mongodb.GroupRepository,
) {
	p := &pipeline{
		conf:        conf,
		lock:        instanceLock,
		adapter:     adapter,
		events:      events,
		scheduler:   sched,
		sweeper:     sweeper,
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		done:        make(chan struct{}),
	}

	lc.Append(fx.Hook{
		OnStart: p.start,
		OnStop:  p.stop,
	})
}

type pipeline struct {
	conf        *config.Config
	lock        lock.InstanceLock
	adapter     transport.Adapter
	events      usecase.EventUsecase
	scheduler   scheduler.Scheduler
	sweeper     scheduler.Sweeper
	messageRepo mongodb.MessageRepository
	groupRepo   mongodb.GroupRepository
	done        chan struct{}
}

func (p *pipeline) start(ctx context.Context) error {
	if err := p.lock.Acquire(ctx); err != nil {
		return err
	}

	if err := p.scheduler.Start(ctx); err != nil {
		return err
	}
	if err := p.sweeper.Start(ctx); err != nil {
		return err
	}

	if err := p.adapter.Start(ctx, p.events.HandleEvent); err != nil {
		return err
	}

	p.syncGroups(ctx)
	go p.housekeeping()

	log.Infow(ctx, "pipeline started", "transport_mode", p.conf.Transport.Mode)
	return nil
}

func (p *pipeline) stop(ctx context.Context) error {
	close(p.done)

	if err := p.adapter.Stop(ctx); err != nil {
		log.Errorw(ctx, "failed to stop transport", "error", err)
	}
	if err := p.sweeper.Stop(ctx); err != nil {
		log.Errorw(ctx, "failed to stop sweeper", "error", err)
	}
	if err := p.scheduler.Stop(ctx); err != nil {
		log.Errorw(ctx, "failed to stop scheduler", "error", err)
	}

	if err := p.lock.Release(ctx); err != nil {
		log.Errorw(ctx, "failed to release instance lock", "error", err)
	}

	log.Infow(ctx, "pipeline stopped")
	return nil
}

// syncGroups records the groups visible on the transport so operators can
// flip their monitoring flag. Failure is not fatal: reactions just stay off
// for unknown groups.
func (p *pipeline) syncGroups(ctx context.Context) {
	groups, err := p.adapter.ListGroups(ctx)
	if err != nil {
		log.Warnw(ctx, "failed to list transport groups", "error", err)
		return
	}

	for _, g := range groups {
		if err := p.groupRepo.EnsureKnown(ctx, g.ID, g.Name); err != nil {
			log.Warnw(ctx, "failed to sync group", "group_id", g.ID, "error", err)
		}
	}

	log.Infow(ctx, "transport groups synced", "count", len(groups))
}

func (p *pipeline) housekeeping() {
	if p.conf.Database.Retention <= 0 {
		return
	}

	// Purge once on startup so processes restarted more often than the
	// ticker interval still enforce retention.
	p.purge()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.purge()
		}
	}
}

func (p *pipeline) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-p.conf.Database.Retention)
	count, err := p.messageRepo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		log.Errorw(ctx, "message purge failed", "error", err)
		return
	}
	if count > 0 {
		log.Infow(ctx, "purged expired messages", "count", count, "cutoff", cutoff)
	}
}
