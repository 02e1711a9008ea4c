package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CursorRepo persists one sync cursor per source. The cursor is opaque to
// everything but the source connector that produced it.
type CursorRepo interface {
	Get(ctx context.Context, source string) (string, error)
	Save(ctx context.Context, source, cursor string) error
	Clear(ctx context.Context, source string) error
}

type cursorRecord struct {
	Source string `bson:"_id"`
	Cursor string `bson:"cursor"`
}

type cursorRepo struct {
	collection *mongo.Collection
}

func NewCursorRepo(collection *mongo.Collection) CursorRepo {
	return &cursorRepo{
		collection: collection,
	}
}

func (r *cursorRepo) Get(ctx context.Context, source string) (string, error) {
	var record cursorRecord
	err := r.collection.FindOne(ctx, map[string]string{"_id": source}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.Cursor, nil
}

func (r *cursorRepo) Save(ctx context.Context, source, cursor string) error {
	_, err := r.collection.ReplaceOne(ctx,
		map[string]string{"_id": source},
		cursorRecord{Source: source, Cursor: cursor},
		options.Replace().SetUpsert(true))
	return err
}

func (r *cursorRepo) Clear(ctx context.Context, source string) error {
	_, err := r.collection.DeleteOne(ctx, map[string]string{"_id": source})
	return err
}
