package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndtrung-ct/signal-reactor/internal/client/signal"
	"github.com/ndtrung-ct/signal-reactor/internal/models"
)

func decodeEnvelope(t *testing.T, raw string) *signal.Envelope {
	t.Helper()
	var env signal.Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return &env
}

func TestClassifyEnvelope(t *testing.T) {
	t.Parallel()

	t.Run("group text message", func(t *testing.T) {
		env := decodeEnvelope(t, `{
			"sourceUuid": "uuid-1",
			"timestamp": 1700000000000,
			"dataMessage": {
				"timestamp": 1700000000123,
				"message": "hello there",
				"groupInfo": {"groupId": "group-a"}
			}
		}`)

		event := ClassifyEnvelope(env)
		assert.Equal(t, models.EventKindText, event.Kind)
		assert.Equal(t, "uuid-1", event.SenderID)
		assert.Equal(t, "group-a", event.GroupID)
		assert.Equal(t, "hello there", event.Body)
		assert.Equal(t, int64(1700000000123), event.SourceTimestamp)
	})

	t.Run("attachment message", func(t *testing.T) {
		env := decodeEnvelope(t, `{
			"sourceUuid": "uuid-2",
			"timestamp": 1700000001000,
			"dataMessage": {
				"message": "check this out",
				"groupV2": {"groupId": "group-b"},
				"attachments": [{"id": "att-1", "contentType": "image/png", "filename": "cat.png"}]
			}
		}`)

		event := ClassifyEnvelope(env)
		assert.Equal(t, models.EventKindAttachment, event.Kind)
		assert.Equal(t, "group-b", event.GroupID)
		require.Len(t, event.Attachments, 1)
		assert.Equal(t, "att-1", event.Attachments[0].ID)
		assert.Equal(t, "image/png", event.Attachments[0].MimeType)
		assert.Equal(t, "cat.png", event.Attachments[0].Filename)
	})

	t.Run("sticker beats attachment", func(t *testing.T) {
		env := decodeEnvelope(t, `{
			"sourceUuid": "uuid-3",
			"timestamp": 1700000002000,
			"dataMessage": {
				"sticker": {"packId": "pack"},
				"attachments": [{"id": "att-2"}]
			}
		}`)

		event := ClassifyEnvelope(env)
		assert.Equal(t, models.EventKindSticker, event.Kind)
	})

	t.Run("reaction is not reacted to", func(t *testing.T) {
		env := decodeEnvelope(t, `{
			"sourceUuid": "uuid-4",
			"timestamp": 1700000003000,
			"dataMessage": {
				"reaction": {"emoji": "👍", "targetAuthor": "uuid-1"}
			}
		}`)

		event := ClassifyEnvelope(env)
		assert.Equal(t, models.EventKindReaction, event.Kind)
	})

	t.Run("receipt typing and sync", func(t *testing.T) {
		receipt := decodeEnvelope(t, `{"sourceUuid": "u", "timestamp": 1, "receiptMessage": {"when": 1}}`)
		assert.Equal(t, models.EventKindReceipt, ClassifyEnvelope(receipt).Kind)

		typing := decodeEnvelope(t, `{"sourceUuid": "u", "timestamp": 2, "typingMessage": {"action": "STARTED"}}`)
		assert.Equal(t, models.EventKindTyping, ClassifyEnvelope(typing).Kind)

		sync := decodeEnvelope(t, `{"sourceUuid": "u", "timestamp": 3, "syncMessage": {}}`)
		assert.Equal(t, models.EventKindSync, ClassifyEnvelope(sync).Kind)
	})

	t.Run("empty envelope is unknown", func(t *testing.T) {
		env := decodeEnvelope(t, `{"sourceUuid": "u", "timestamp": 4}`)
		assert.Equal(t, models.EventKindUnknown, ClassifyEnvelope(env).Kind)
	})

	t.Run("falls back to source number when uuid missing", func(t *testing.T) {
		env := decodeEnvelope(t, `{
			"source": "+15550001111",
			"timestamp": 5,
			"dataMessage": {"message": "hi"}
		}`)

		event := ClassifyEnvelope(env)
		assert.Equal(t, "+15550001111", event.SenderID)
		assert.Empty(t, event.GroupID)
	})
}
