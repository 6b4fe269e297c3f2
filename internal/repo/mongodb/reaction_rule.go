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

// ReactionRuleRepository stores per-sender reaction rules. AdvanceCursor is
// the only writer of the sequential cursor and rotates it atomically so
// concurrent readers never observe an out-of-range value.
type ReactionRuleRepository interface {
	GetBySender(ctx context.Context, senderID string) (*models.ReactionRule, error)
	Upsert(ctx context.Context, rule *models.ReactionRule) error
	AdvanceCursor(ctx context.Context, senderID string) error
	List(ctx context.Context) ([]*models.ReactionRule, error)
}

type reactionRuleRepo struct {
	collection *mongo.Collection
}

func NewReactionRuleRepository(db *DB) ReactionRuleRepository {
	return &reactionRuleRepo{
		collection: db.Database.Collection("reaction_rules"),
	}
}

func (r *reactionRuleRepo) GetBySender(ctx context.Context, senderID string) (*models.ReactionRule, error) {
	var rule models.ReactionRule
	err := r.collection.FindOne(ctx, bson.M{"_id": senderID}).Decode(&rule)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reaction rule: %w", err)
	}
	return &rule, nil
}

// Upsert replaces the rule for a sender. Editing the emoji set resets the
// sequential cursor so it always points into the new set.
func (r *reactionRuleRepo) Upsert(ctx context.Context, rule *models.ReactionRule) error {
	rule.Cursor = 0
	rule.UpdatedAt = time.Now()

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": rule.UserID}, rule, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert reaction rule: %w", err)
	}
	return nil
}

// AdvanceCursor rotates cursor to (cursor+1) mod len(emojis) in a single
// aggregation-pipeline update.
func (r *reactionRuleRepo) AdvanceCursor(ctx context.Context, senderID string) error {
	pipeline := bson.A{
		bson.M{"$set": bson.M{
			"cursor": bson.M{"$mod": bson.A{
				bson.M{"$add": bson.A{"$cursor", 1}},
				bson.M{"$max": bson.A{bson.M{"$size": "$emojis"}, 1}},
			}},
			"updated_at": time.Now(),
		}},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": senderID}, pipeline)
	if err != nil {
		return fmt.Errorf("failed to advance reaction cursor: %w", err)
	}
	return nil
}

func (r *reactionRuleRepo) List(ctx context.Context) ([]*models.ReactionRule, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list reaction rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []*models.ReactionRule
	for cursor.Next(ctx) {
		var rule models.ReactionRule
		if err := cursor.Decode(&rule); err != nil {
			return nil, fmt.Errorf("failed to decode reaction rule: %w", err)
		}
		rules = append(rules, &rule)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return rules, nil
}
