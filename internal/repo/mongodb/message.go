package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ndtrung-ct/signal-reactor/internal/models"
)

// MessageRepository persists classified events and their attachments.
type MessageRepository interface {
	Save(ctx context.Context, msg *models.Message, attachments []models.Attachment) error
	Exists(ctx context.Context, eventID string) (bool, error)
	MarkReacted(ctx context.Context, eventID string) error
	InRange(ctx context.Context, groupID string, since, until time.Time) ([]*models.Message, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type messageRepo struct {
	collection  *mongo.Collection
	attachments *mongo.Collection
}

func NewMessageRepository(db *DB) MessageRepository {
	repo := &messageRepo{
		collection:  db.Database.Collection("messages"),
		attachments: db.Database.Collection("attachments"),
	}

	go repo.createIndexes(context.Background())

	return repo
}

func (r *messageRepo) createIndexes(ctx context.Context) {
	eventIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "event_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetName("event_id_unique"),
	}

	rangeIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "timestamp_ms", Value: 1},
		},
		Options: options.Index().SetName("group_time"),
	}

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{eventIndex, rangeIndex})
	if err != nil {
		fmt.Printf("Failed to create message indexes: %v\n", err)
	}

	attIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "message_id", Value: 1}},
		Options: options.Index().SetName("message_id"),
	}
	if _, err := r.attachments.Indexes().CreateOne(ctx, attIndex); err != nil {
		fmt.Printf("Failed to create attachment index: %v\n", err)
	}
}

func (r *messageRepo) Save(ctx context.Context, msg *models.Message, attachments []models.Attachment) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	msg.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Same event delivered twice; the first insert won.
			return nil
		}
		return fmt.Errorf("failed to save message: %w", err)
	}

	if len(attachments) == 0 {
		return nil
	}

	docs := make([]any, 0, len(attachments))
	for i := range attachments {
		attachments[i].ID = primitive.NewObjectID()
		attachments[i].MessageID = msg.ID
		docs = append(docs, attachments[i])
	}
	if _, err := r.attachments.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to save attachments: %w", err)
	}

	return nil
}

func (r *messageRepo) Exists(ctx context.Context, eventID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"event_id": eventID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check message existence: %w", err)
	}
	return count > 0, nil
}

func (r *messageRepo) MarkReacted(ctx context.Context, eventID string) error {
	update := bson.M{"$set": bson.M{"reacted": true}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"event_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark message reacted: %w", err)
	}
	return nil
}

func (r *messageRepo) InRange(ctx context.Context, groupID string, since, until time.Time) ([]*models.Message, error) {
	filter := bson.M{
		"group_id": groupID,
		"timestamp_ms": bson.M{
			"$gte": since.UnixMilli(),
			"$lt":  until.UnixMilli(),
		},
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp_ms", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages in range: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var msg models.Message
		if err := cursor.Decode(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return messages, nil
}

func (r *messageRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{"timestamp_ms": bson.M{"$lt": cutoff.UnixMilli()}}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to list messages to purge: %w", err)
	}
	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			cursor.Close(ctx)
			return 0, fmt.Errorf("failed to decode purge candidate: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	cursor.Close(ctx)
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("cursor error: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := r.attachments.DeleteMany(ctx, bson.M{"message_id": bson.M{"$in": ids}}); err != nil {
		return 0, fmt.Errorf("failed to purge attachments: %w", err)
	}

	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}

	return result.DeletedCount, nil
}
