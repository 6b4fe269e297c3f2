package models

import "time"

// Outcome is the terminal processing result recorded on a ProcessedMarker.
type Outcome string

const (
	// OutcomePending is set when the marker row is first claimed. It is a
	// transient value: a crash before dispatch leaves it behind, and the
	// event is never retried.
	OutcomePending Outcome = "pending"
	OutcomeReacted Outcome = "reacted"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ProcessedMarker records that an inbound event has been handled. At most
// one marker exists per stable event id; later sightings of the same id are
// idempotent no-ops.
type ProcessedMarker struct {
	EventID     string    `bson:"_id" json:"event_id"`
	Outcome     Outcome   `bson:"outcome" json:"outcome"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}
