package transport

import (
	"github.com/ndtrung-ct/signal-reactor/internal/client/signal"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
)

// ClassifyEnvelope maps a raw signal-cli envelope onto a pipeline event.
// Classification never fails: envelopes that match no known shape come back
// as EventKindUnknown and the caller decides what to drop.
func ClassifyEnvelope(env *signal.Envelope) models.Event {
	event := models.Event{
		SenderID:        env.SourceUUID,
		SourceTimestamp: env.Timestamp,
		Kind:            models.EventKindUnknown,
	}
	if event.SenderID == "" {
		event.SenderID = env.Source
	}

	switch {
	case env.DataMessage != nil:
		classifyDataMessage(env.DataMessage, &event)
	case len(env.SyncMessage) > 0:
		event.Kind = models.EventKindSync
	case len(env.TypingMessage) > 0:
		event.Kind = models.EventKindTyping
	case len(env.ReceiptMessage) > 0:
		event.Kind = models.EventKindReceipt
	}

	return event
}

func classifyDataMessage(dm *signal.DataMessage, event *models.Event) {
	if dm.Timestamp > 0 {
		event.SourceTimestamp = dm.Timestamp
	}
	if dm.GroupInfo != nil {
		event.GroupID = dm.GroupInfo.GroupID
	} else if dm.GroupV2 != nil {
		event.GroupID = dm.GroupV2.GroupID
	}
	event.Body = dm.Message

	switch {
	case len(dm.Reaction) > 0:
		event.Kind = models.EventKindReaction
	case len(dm.Sticker) > 0:
		event.Kind = models.EventKindSticker
	case len(dm.Attachments) > 0:
		event.Kind = models.EventKindAttachment
		for _, att := range dm.Attachments {
			event.Attachments = append(event.Attachments, models.EventAttachment{
				ID:       att.ID,
				Filename: att.Filename,
				MimeType: att.ContentType,
			})
		}
	case dm.Message != "":
		event.Kind = models.EventKindText
	}
}
