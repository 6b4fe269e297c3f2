package usecase

import (
	"context"
	"fmt"
	"time"

	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
	"github.com/ndtrung-ct/signal-reactor/internal/transport"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

// ReactionDispatcher selects an emoji for an event and delivers the reaction
// through the transport. Delivery retries live in the transport adapter; a
// dispatch that still fails afterwards is terminal for this event.
type ReactionDispatcher interface {
	Dispatch(ctx context.Context, event models.Event, rule *models.ReactionRule) error
}

type reactionDispatcher struct {
	adapter     transport.Adapter
	selector    EmojiSelector
	messageRepo mongodb.MessageRepository
	metrics     *prometheus.HistogramVec
}

func NewReactionDispatcher(
	adapter transport.Adapter,
	selector EmojiSelector,
	messageRepo mongodb.MessageRepository,
) (ReactionDispatcher, error) {
	metrics, err := util.GetHistogramVec("reactions_dispatched", "status", "mode")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}

	return &reactionDispatcher{
		adapter:     adapter,
		selector:    selector,
		messageRepo: messageRepo,
		metrics:     metrics,
	}, nil
}

func (d *reactionDispatcher) Dispatch(ctx context.Context, event models.Event, rule *models.ReactionRule) (err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		d.metrics.WithLabelValues(status, string(rule.Mode)).Observe(time.Since(start).Seconds())
	}()

	emoji, err := d.selector.Select(ctx, rule, event)
	if err != nil {
		return fmt.Errorf("failed to select emoji: %w", err)
	}

	err = d.adapter.SendReaction(ctx, event.GroupID, event.SenderID, event.SourceTimestamp, emoji)
	if err != nil {
		return fmt.Errorf("failed to send reaction: %w", err)
	}

	if err := d.messageRepo.MarkReacted(ctx, event.StableID()); err != nil {
		// The reaction is already out; a stale flag is not worth failing for.
		log.Errorw(ctx, "failed to flag message as reacted",
			"event_id", event.StableID(),
			"error", err,
		)
	}

	log.Infow(ctx, "reaction dispatched",
		"event_id", event.StableID(),
		"group_id", event.GroupID,
		"emoji", emoji,
		"mode", rule.Mode,
	)
	return nil
}
