package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
	"github.com/ndtrung-ct/signal-reactor/pkg/util"
)

type GroupRepository interface {
	IsMonitored(ctx context.Context, groupID string) (bool, error)
	Upsert(ctx context.Context, group *models.Group) error
	EnsureKnown(ctx context.Context, groupID, name string) error
	List(ctx context.Context) ([]*models.Group, error)
}

type groupRepo struct {
	collection *mongo.Collection
}

func NewGroupRepository(db *DB) GroupRepository {
	return &groupRepo{
		collection: db.Database.Collection("groups"),
	}
}

// IsMonitored reports whether the group is known and flagged for reactions.
// Unknown groups are not monitored.
func (r *groupRepo) IsMonitored(ctx context.Context, groupID string) (bool, error) {
	var group models.Group
	err := r.collection.FindOne(ctx, bson.M{"_id": groupID}).Decode(&group)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up group: %w", err)
	}
	return group.Monitored, nil
}

func (r *groupRepo) Upsert(ctx context.Context, group *models.Group) error {
	group.SyncedAt = util.Ptr(time.Now())

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": group.GroupID}, group, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}
	return nil
}

// EnsureKnown records a group discovered on the transport without touching
// its monitoring flag. New groups start unmonitored until an operator flips
// them on.
func (r *groupRepo) EnsureKnown(ctx context.Context, groupID, name string) error {
	now := time.Now()
	update := bson.M{
		"$set":         bson.M{"name": name, "synced_at": now},
		"$setOnInsert": bson.M{"monitored": false},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": groupID}, update, opts); err != nil {
		return fmt.Errorf("failed to sync group: %w", err)
	}
	return nil
}

func (r *groupRepo) List(ctx context.Context) ([]*models.Group, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []*models.Group
	for cursor.Next(ctx) {
		var group models.Group
		if err := cursor.Decode(&group); err != nil {
			return nil, fmt.Errorf("failed to decode group: %w", err)
		}
		groups = append(groups, &group)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return groups, nil
}
