package repository

import (
	"context"

	"github.com/northbuild/north-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConversationRepo is the durable conversation history. The in-memory
// context store stays authoritative for query-time context; this exists
// so history survives restarts.
type ConversationRepo interface {
	Append(ctx context.Context, record *types.ConversationRecord) error
	Recent(ctx context.Context, userID string, limit int) ([]*types.ConversationRecord, error)
}

type conversationRepo struct {
	collection *mongo.Collection
}

func NewConversationRepo(collection *mongo.Collection) ConversationRepo {
	return &conversationRepo{
		collection: collection,
	}
}

func (r *conversationRepo) Append(ctx context.Context, record *types.ConversationRecord) error {
	_, err := r.collection.InsertOne(ctx, record)
	return err
}

func (r *conversationRepo) Recent(ctx context.Context, userID string, limit int) ([]*types.ConversationRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "completed_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, map[string]string{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*types.ConversationRecord
	for cursor.Next(ctx) {
		var record types.ConversationRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, nil
}
