package models

import "time"

// ReactionMode determines how an emoji is chosen for a sender.
type ReactionMode string

const (
	ReactionModeRandom     ReactionMode = "random"
	ReactionModeSequential ReactionMode = "sequential"
	ReactionModeAI         ReactionMode = "ai"
)

// ReactionRule is the per-sender reaction policy. Cursor is only meaningful
// in sequential mode and persists across selections.
type ReactionRule struct {
	UserID    string       `bson:"_id" json:"user_id"`
	Emojis    []string     `bson:"emojis" json:"emojis"`
	Mode      ReactionMode `bson:"mode" json:"mode"`
	Enabled   bool         `bson:"enabled" json:"enabled"`
	Cursor    int          `bson:"cursor" json:"cursor"`
	UpdatedAt time.Time    `bson:"updated_at" json:"updated_at"`
}

// Group carries the monitoring flag for a messenger group. Messages from
// unmonitored groups are stored but never reacted to.
type Group struct {
	GroupID   string     `bson:"_id" json:"group_id"`
	Name      string     `bson:"name,omitempty" json:"name,omitempty"`
	Monitored bool       `bson:"monitored" json:"monitored"`
	SyncedAt  *time.Time `bson:"synced_at,omitempty" json:"synced_at,omitempty"`
}
