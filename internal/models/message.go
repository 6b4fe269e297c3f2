package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is the durable form of a classified event. Immutable after
// creation except for the Reacted flag.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID     string             `bson:"event_id" json:"event_id"`
	SenderID    string             `bson:"sender_id" json:"sender_id"`
	GroupID     string             `bson:"group_id,omitempty" json:"group_id,omitempty"`
	TimestampMs int64              `bson:"timestamp_ms" json:"timestamp_ms"`
	Body        string             `bson:"body,omitempty" json:"body,omitempty"`
	Kind        EventKind          `bson:"kind" json:"kind"`
	Reacted     bool               `bson:"reacted" json:"reacted"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// Attachment is owned exclusively by its Message and is deleted only when
// the Message is purged.
type Attachment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MessageID  primitive.ObjectID `bson:"message_id" json:"message_id"`
	Filename   string             `bson:"filename" json:"filename"`
	ContentRef string             `bson:"content_ref" json:"content_ref"`
	MimeType   string             `bson:"mime_type" json:"mime_type"`
}

func (m Message) SentAt() time.Time {
	return time.UnixMilli(m.TimestampMs)
}
