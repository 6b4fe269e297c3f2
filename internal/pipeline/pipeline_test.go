package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
)

type purgeCountingRepo struct {
	mu     sync.Mutex
	purges int
}

func (r *purgeCountingRepo) Save(ctx context.Context, msg *models.Message, attachments []models.Attachment) error {
	return nil
}

func (r *purgeCountingRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

func (r *purgeCountingRepo) MarkReacted(ctx context.Context, eventID string) error { return nil }

func (r *purgeCountingRepo) InRange(ctx context.Context, groupID string, since, until time.Time) ([]*models.Message, error) {
	return nil, nil
}

func (r *purgeCountingRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purges++
	return 3, nil
}

func (r *purgeCountingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purges
}

func TestHousekeeping(t *testing.T) {
	t.Parallel()

	t.Run("purges once at startup", func(t *testing.T) {
		repo := &purgeCountingRepo{}
		p := &pipeline{
			conf:        &config.Config{Database: config.DatabaseConfig{Retention: 30 * 24 * time.Hour}},
			messageRepo: repo,
			done:        make(chan struct{}),
		}

		go p.housekeeping()
		defer close(p.done)

		assert.Eventually(t, func() bool {
			return repo.count() == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("zero retention disables purging", func(t *testing.T) {
		repo := &purgeCountingRepo{}
		p := &pipeline{
			conf:        &config.Config{Database: config.DatabaseConfig{Retention: 0}},
			messageRepo: repo,
			done:        make(chan struct{}),
		}

		p.housekeeping()

		assert.Zero(t, repo.count())
	})
}
