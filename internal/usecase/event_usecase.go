package usecase

import (
	"context"
	"fmt"

	log "github.com/carousell/ct-go/pkg/logger/log_context"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/internal/repo/mongodb"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

// EventUsecase is the ingestion path: one call per transport event, invoked
// synchronously from the adapter's read loop.
type EventUsecase interface {
	HandleEvent(ctx context.Context, event models.Event) error
}

type eventUsecase struct {
	markerRepo  mongodb.MarkerRepository
	messageRepo mongodb.MessageRepository
	groupRepo   mongodb.GroupRepository
	ruleRepo    mongodb.ReactionRuleRepository
	dispatcher  ReactionDispatcher
}

func NewEventUsecase(
	markerRepo mongodb.MarkerRepository,
	messageRepo mongodb.MessageRepository,
	groupRepo mongodb.GroupRepository,
	ruleRepo mongodb.ReactionRuleRepository,
	dispatcher ReactionDispatcher,
) EventUsecase {
	return &eventUsecase{
		markerRepo:  markerRepo,
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		ruleRepo:    ruleRepo,
		dispatcher:  dispatcher,
	}
}

func (uc *eventUsecase) HandleEvent(ctx context.Context, event models.Event) error {
	if !persistable(event.Kind) {
		log.Debugw(ctx, "ignoring event", "kind", event.Kind, "sender_id", event.SenderID)
		return nil
	}

	eventID := event.StableID()

	claimed, err := uc.markerRepo.Reserve(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to reserve event: %w", err)
	}
	if !claimed {
		log.Debugw(ctx, "duplicate event delivery, skipping", "event_id", eventID)
		return nil
	}

	if err := uc.persist(ctx, event, eventID); err != nil {
		return err
	}

	outcome := uc.react(ctx, event)
	if err := uc.markerRepo.SetOutcome(ctx, eventID, outcome); err != nil {
		return fmt.Errorf("failed to finalize event outcome: %w", err)
	}

	return nil
}

func (uc *eventUsecase) persist(ctx context.Context, event models.Event, eventID string) error {
	msg := &models.Message{
		EventID:     eventID,
		SenderID:    event.SenderID,
		GroupID:     event.GroupID,
		TimestampMs: event.SourceTimestamp,
		Body:        event.Body,
		Kind:        event.Kind,
	}

	attachments := util.ConvertList(event.Attachments, func(att models.EventAttachment) models.Attachment {
		return models.Attachment{
			ContentRef: att.ID,
			Filename:   att.Filename,
			MimeType:   att.MimeType,
		}
	})

	if err := uc.messageRepo.Save(ctx, msg, attachments); err != nil {
		return fmt.Errorf("failed to persist message: %w", err)
	}
	return nil
}

// react decides the marker outcome for a persisted event. Events outside
// monitored groups and senders without an enabled rule are recorded as
// skipped; only a failed dispatch yields a failed outcome.
func (uc *eventUsecase) react(ctx context.Context, event models.Event) models.Outcome {
	if event.GroupID == "" {
		return models.OutcomeSkipped
	}

	monitored, err := uc.groupRepo.IsMonitored(ctx, event.GroupID)
	if err != nil {
		log.Errorw(ctx, "failed to check group monitoring", "group_id", event.GroupID, "error", err)
		return models.OutcomeFailed
	}
	if !monitored {
		return models.OutcomeSkipped
	}

	rule, err := uc.ruleRepo.GetBySender(ctx, event.SenderID)
	if err != nil {
		log.Errorw(ctx, "failed to load reaction rule", "sender_id", event.SenderID, "error", err)
		return models.OutcomeFailed
	}
	if rule == nil || !rule.Enabled || len(rule.Emojis) == 0 {
		return models.OutcomeSkipped
	}

	if err := uc.dispatcher.Dispatch(ctx, event, rule); err != nil {
		log.Errorw(ctx, "reaction dispatch failed",
			"event_id", event.StableID(),
			"group_id", event.GroupID,
			"error", err,
		)
		return models.OutcomeFailed
	}

	return models.OutcomeReacted
}

func persistable(kind models.EventKind) bool {
	switch kind {
	case models.EventKindText, models.EventKindAttachment, models.EventKindSticker:
		return true
	default:
		return false
	}
}
