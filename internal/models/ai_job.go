package models

import "time"

// JobState is the AI job lifecycle. Transitions are monotonic:
// queued -> running -> {completed, failed}. Terminal states never revert.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// AnalysisKind names a configured analysis prompt.
type AnalysisKind string

const (
	AnalysisSummary   AnalysisKind = "summary"
	AnalysisSentiment AnalysisKind = "sentiment"
)

// JobParams is the analysis request attached to a job.
type JobParams struct {
	Kind     AnalysisKind `bson:"kind" json:"kind" validate:"required"`
	GroupID  string       `bson:"group_id" json:"group_id" validate:"required"`
	SenderID string       `bson:"sender_id,omitempty" json:"sender_id,omitempty"`
	Hours    int          `bson:"hours" json:"hours" validate:"gt=0,lte=168"`
}

// AIJob tracks one asynchronous analysis request.
type AIJob struct {
	ID          string     `bson:"_id" json:"id"`
	Params      JobParams  `bson:"params" json:"params"`
	State       JobState   `bson:"state" json:"state"`
	Result      string     `bson:"result,omitempty" json:"result,omitempty"`
	Error       string     `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
