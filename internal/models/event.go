package models

import "fmt"

// EventKind tells what a transport envelope carries.
type EventKind string

const (
	EventKindText       EventKind = "text"
	EventKindAttachment EventKind = "attachment"
	EventKindSticker    EventKind = "sticker"
	EventKindReaction   EventKind = "reaction"
	EventKindReceipt    EventKind = "receipt"
	EventKindTyping     EventKind = "typing"
	EventKindSync       EventKind = "sync"
	EventKindUnknown    EventKind = "unknown"
)

// Event is a single inbound occurrence from the messaging transport.
// It is transient: only the Message produced by classification is persisted.
type Event struct {
	SenderID        string
	GroupID         string
	SourceTimestamp int64 // transport timestamp, milliseconds
	Kind            EventKind
	Body            string
	Attachments     []EventAttachment
}

type EventAttachment struct {
	ID       string
	Filename string
	MimeType string
}

// StableID builds the dedup key for an event. Transport message ids may
// repeat across reconnects, so the key is the sender/group/timestamp
// composite instead.
func (e Event) StableID() string {
	return EventID(e.SenderID, e.GroupID, e.SourceTimestamp)
}

func EventID(senderID, groupID string, timestampMs int64) string {
	return fmt.Sprintf("%s:%s:%d", senderID, groupID, timestampMs)
}
