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

// MarkerRepository tracks processed events so duplicate deliveries never
// trigger a second reaction. Reserve claims an event atomically; the caller
// that wins the claim finalizes the outcome exactly once.
type MarkerRepository interface {
	Reserve(ctx context.Context, eventID string) (bool, error)
	SetOutcome(ctx context.Context, eventID string, outcome models.Outcome) error
	IsProcessed(ctx context.Context, eventID string) (bool, error)
}

type markerRepo struct {
	collection *mongo.Collection
}

func NewMarkerRepository(db *DB) MarkerRepository {
	return &markerRepo{
		collection: db.Database.Collection("processed_markers"),
	}
}

// Reserve atomically claims eventID with a pending outcome. It returns true
// when this caller won the claim and false when a marker already existed.
func (r *markerRepo) Reserve(ctx context.Context, eventID string) (bool, error) {
	marker := models.ProcessedMarker{
		EventID:     eventID,
		Outcome:     models.OutcomePending,
		ProcessedAt: time.Now(),
	}

	update := bson.M{"$setOnInsert": marker}
	opts := options.Update().SetUpsert(true)

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update, opts)
	if err != nil {
		return false, fmt.Errorf("failed to reserve event marker: %w", err)
	}

	return result.UpsertedCount > 0, nil
}

func (r *markerRepo) SetOutcome(ctx context.Context, eventID string, outcome models.Outcome) error {
	update := bson.M{"$set": bson.M{
		"outcome":      outcome,
		"processed_at": time.Now(),
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("failed to set marker outcome: %w", err)
	}
	return nil
}

func (r *markerRepo) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": eventID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check event marker: %w", err)
	}
	return count > 0, nil
}
