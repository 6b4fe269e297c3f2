package transport

import (
	"context"
	"fmt"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"

	"github.com/ndtrung-ct/signal-reactor/internal/client/signal"
	"github.com/ndtrung-ct/signal-reactor/internal/config"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
)

// EventHandler consumes one classified event. Adapters invoke it from a
// single goroutine, so events of the same group arrive in order.
type EventHandler func(ctx context.Context, event models.Event) error

// Adapter is the event source and reaction sink of the pipeline. Two
// implementations exist: a persistent daemon connection that consumes pushed
// notifications, and a polling loop that drains the daemon on an interval.
type Adapter interface {
	Start(ctx context.Context, handler EventHandler) error
	SendReaction(ctx context.Context, groupID, targetAuthor string, targetTimestamp int64, emoji string) error
	ListGroups(ctx context.Context) ([]signal.ListedGroup, error)
	Stop(ctx context.Context) error
}

const (
	ModeDaemon  = "daemon"
	ModePolling = "polling"
)

func NewAdapter(cfg config.TransportConfig) (Adapter, error) {
	switch cfg.Mode {
	case ModeDaemon:
		return NewDaemonAdapter(cfg)
	case ModePolling:
		return NewPollingAdapter(cfg)
	default:
		return nil, fmt.Errorf("unknown transport mode: %q", cfg.Mode)
	}
}

// sender is the outbound half shared by both adapters.
type sender struct {
	client  signal.Client
	account string
	retries int
	backoff time.Duration
}

func (s *sender) sendReaction(ctx context.Context, groupID, targetAuthor string, targetTimestamp int64, emoji string) error {
	params := signal.SendReactionParams{
		Account:         s.account,
		GroupID:         groupID,
		Emoji:           emoji,
		TargetAuthor:    targetAuthor,
		TargetTimestamp: targetTimestamp,
	}

	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		lastErr = signal.SendReaction(ctx, s.client, params)
		if lastErr == nil {
			return nil
		}

		log.Warnw(ctx, "sendReaction attempt failed",
			"attempt", attempt,
			"group_id", groupID,
			"error", lastErr,
		)

		if attempt == s.retries {
			break
		}
		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("sendReaction failed after %d attempts: %w", s.retries, lastErr)
}

func (s *sender) listGroups(ctx context.Context) ([]signal.ListedGroup, error) {
	return signal.ListGroups(ctx, s.client, s.account)
}
