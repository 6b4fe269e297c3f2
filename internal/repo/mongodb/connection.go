package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func (db *DB) Close(ctx context.Context) error {
	return db.Client.Disconnect(ctx)
}
