package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
)

// AIJobRepository persists analysis jobs. State transitions are guarded by
// filtered updates so each job moves queued -> running -> terminal exactly
// once, no matter how many workers or sweepers race on it.
type AIJobRepository interface {
	Insert(ctx context.Context, job *models.AIJob) error
	GetByID(ctx context.Context, id string) (*models.AIJob, error)
	ClaimRunning(ctx context.Context, id string) (*models.AIJob, error)
	NextQueued(ctx context.Context) (*models.AIJob, error)
	Complete(ctx context.Context, id, result string) error
	Fail(ctx context.Context, id, reason string) error
	FailStuck(ctx context.Context, olderThan time.Duration) (int64, error)
	FailActive(ctx context.Context, reason string) (int64, error)
}

type aiJobRepo struct {
	collection *mongo.Collection
}

func NewAIJobRepository(db *DB) AIJobRepository {
	repo := &aiJobRepo{
		collection: db.Database.Collection("ai_jobs"),
	}

	go repo.createIndexes(context.Background())

	return repo
}

func (r *aiJobRepo) createIndexes(ctx context.Context) {
	stateIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "state", Value: 1},
			{Key: "created_at", Value: 1},
		},
		Options: options.Index().SetName("state_created"),
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, stateIndex); err != nil {
		fmt.Printf("Failed to create ai_jobs index: %v\n", err)
	}
}

func (r *aiJobRepo) Insert(ctx context.Context, job *models.AIJob) error {
	job.State = models.JobStateQueued
	job.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (r *aiJobRepo) GetByID(ctx context.Context, id string) (*models.AIJob, error) {
	var job models.AIJob
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ClaimRunning moves a queued job to running. It returns ErrNotFound when the
// job no longer exists in the queued state, e.g. another worker claimed it.
func (r *aiJobRepo) ClaimRunning(ctx context.Context, id string) (*models.AIJob, error) {
	now := time.Now()
	filter := bson.M{"_id": id, "state": models.JobStateQueued}
	update := bson.M{"$set": bson.M{
		"state":      models.JobStateRunning,
		"started_at": now,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var job models.AIJob
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &job, nil
}

func (r *aiJobRepo) NextQueued(ctx context.Context) (*models.AIJob, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	var job models.AIJob
	err := r.collection.FindOne(ctx, bson.M{"state": models.JobStateQueued}, opts).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find queued job: %w", err)
	}
	return &job, nil
}

func (r *aiJobRepo) Complete(ctx context.Context, id, result string) error {
	return r.finish(ctx, id, models.JobStateCompleted, bson.M{"result": result})
}

func (r *aiJobRepo) Fail(ctx context.Context, id, reason string) error {
	return r.finish(ctx, id, models.JobStateFailed, bson.M{"error": reason})
}

func (r *aiJobRepo) finish(ctx context.Context, id string, state models.JobState, extra bson.M) error {
	now := time.Now()
	set := bson.M{
		"state":        state,
		"completed_at": now,
	}
	for k, v := range extra {
		set[k] = v
	}

	// Only a running job may reach a terminal state; a lost race is a no-op.
	filter := bson.M{"_id": id, "state": models.JobStateRunning}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// FailStuck marks running jobs whose started_at is older than the deadline as
// failed. The state filter makes the sweep idempotent under races with
// normally completing workers.
func (r *aiJobRepo) FailStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now()
	filter := bson.M{
		"state":      models.JobStateRunning,
		"started_at": bson.M{"$lt": now.Add(-olderThan)},
	}
	update := bson.M{"$set": bson.M{
		"state":        models.JobStateFailed,
		"error":        models.ErrJobTimeout.Error(),
		"completed_at": now,
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stuck jobs: %w", err)
	}
	return result.ModifiedCount, nil
}

// FailActive marks every queued and running job as failed. Called on shutdown
// so restarts never resurrect half-finished work.
func (r *aiJobRepo) FailActive(ctx context.Context, reason string) (int64, error) {
	now := time.Now()
	filter := bson.M{"state": bson.M{"$in": bson.A{models.JobStateQueued, models.JobStateRunning}}}
	update := bson.M{"$set": bson.M{
		"state":        models.JobStateFailed,
		"error":        reason,
		"completed_at": now,
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to fail active jobs: %w", err)
	}
	return result.ModifiedCount, nil
}
