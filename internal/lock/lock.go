package lock

import (
	"context"
	"os"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
)

// InstanceLock guarantees a single live pipeline instance per lock name.
// After Acquire succeeds a heartbeat goroutine keeps the lease fresh; if the
// lease is lost, e.g. the database expired us and another instance took over,
// the whole application shuts down rather than run a split brain.
type InstanceLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

type instanceLock struct {
	repo       mongodb.InstanceLockRepository
	cfg        config.LockConfig
	shutdowner fx.Shutdowner

	ownerToken string
	done       chan struct{}
	stopped    chan struct{}
}

func NewInstanceLock(
	repo mongodb.InstanceLockRepository,
	cfg config.LockConfig,
	shutdowner fx.Shutdowner,
) InstanceLock {
	return &instanceLock{
		repo:       repo,
		cfg:        cfg,
		shutdowner: shutdowner,
		ownerToken: uuid.NewString(),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

func (l *instanceLock) Acquire(ctx context.Context) error {
	hostname, _ := os.Hostname()
	record := &models.InstanceLockRecord{
		Name:       l.cfg.Name,
		OwnerToken: l.ownerToken,
		OwnerPID:   os.Getpid(),
		Hostname:   hostname,
	}

	if err := l.repo.Acquire(ctx, record, l.cfg.LivenessWindow); err != nil {
		return err
	}

	log.Infow(ctx, "instance lock acquired",
		"name", l.cfg.Name,
		"pid", record.OwnerPID,
		"hostname", hostname,
	)

	go l.heartbeatLoop()
	return nil
}

func (l *instanceLock) heartbeatLoop() {
	defer close(l.stopped)

	ticker := time.NewTicker(l.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.heartbeat()
		}
	}
}

func (l *instanceLock) heartbeat() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	held, err := l.repo.Heartbeat(ctx, l.cfg.Name, l.ownerToken)
	if err != nil {
		log.Errorw(ctx, "instance lock heartbeat failed", "error", err)
		return
	}
	if !held {
		log.Errorw(ctx, "instance lock lost, shutting down", "name", l.cfg.Name)
		if err := l.shutdowner.Shutdown(); err != nil {
			log.Errorw(ctx, "failed to trigger shutdown", "error", err)
		}
	}
}

// Release stops the heartbeat and drops the lease. Safe to call even when
// the lock was never acquired or was already taken over.
func (l *instanceLock) Release(ctx context.Context) error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}

	select {
	case <-l.stopped:
	case <-time.After(time.Second):
	}

	return l.repo.Release(ctx, l.cfg.Name, l.ownerToken)
}
