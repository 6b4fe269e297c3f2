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

// InstanceLockRepository implements a heartbeat lease over a single document.
// A lock is free when no document exists or when its heartbeat is older than
// the liveness window, which lets a new instance take over after a crash
// without manual cleanup.
type InstanceLockRepository interface {
	Acquire(ctx context.Context, record *models.InstanceLockRecord, livenessWindow time.Duration) error
	Heartbeat(ctx context.Context, name, ownerToken string) (bool, error)
	Release(ctx context.Context, name, ownerToken string) error
}

type instanceLockRepo struct {
	collection *mongo.Collection
}

func NewInstanceLockRepository(db *DB) InstanceLockRepository {
	return &instanceLockRepo{
		collection: db.Database.Collection("instance_locks"),
	}
}

func (r *instanceLockRepo) Acquire(ctx context.Context, record *models.InstanceLockRecord, livenessWindow time.Duration) error {
	now := time.Now()
	record.StartedAt = now
	record.HeartbeatAt = now

	// Replace only a stale holder; a live holder makes the filter miss and
	// the upsert collide on _id.
	filter := bson.M{
		"_id":          record.Name,
		"heartbeat_at": bson.M{"$lt": now.Add(-livenessWindow)},
	}

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, filter, record, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.alreadyRunning(ctx, record.Name)
		}
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	return nil
}

func (r *instanceLockRepo) alreadyRunning(ctx context.Context, name string) error {
	var holder models.InstanceLockRecord
	if err := r.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&holder); err != nil {
		return &models.AlreadyRunningError{}
	}
	return &models.AlreadyRunningError{
		OwnerPID: holder.OwnerPID,
		Hostname: holder.Hostname,
	}
}

// Heartbeat refreshes the lease and reports whether this owner still holds it.
func (r *instanceLockRepo) Heartbeat(ctx context.Context, name, ownerToken string) (bool, error) {
	filter := bson.M{"_id": name, "owner_token": ownerToken}
	update := bson.M{"$set": bson.M{"heartbeat_at": time.Now()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to heartbeat instance lock: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// Release deletes the lock only when this owner still holds it; releasing a
// lock someone else took over is a no-op.
func (r *instanceLockRepo) Release(ctx context.Context, name, ownerToken string) error {
	filter := bson.M{"_id": name, "owner_token": ownerToken}
	if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to release instance lock: %w", err)
	}
	return nil
}
