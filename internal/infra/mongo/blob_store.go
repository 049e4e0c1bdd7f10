package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exit-readiness-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type reportDocument struct {
	Key         string    `bson:"_id"`
	ContentType string    `bson:"contentType"`
	Data        []byte    `bson:"data"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// BlobStore keeps reports in the reports collection, one document per key.
type BlobStore struct {
	db      *mongo.Database
	reports *mongo.Collection
}

func NewBlobStore(db *mongo.Database) *BlobStore {
	return &BlobStore{db: db, reports: db.Collection("reports")}
}

func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	doc := reportDocument{Key: key, ContentType: contentType, Data: data, CreatedAt: time.Now().UTC()}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.reports.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return fmt.Errorf("store report %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) (domain.Blob, error) {
	var doc reportDocument
	err := s.reports.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Blob{}, domain.ErrReportNotFound
	}
	if err != nil {
		return domain.Blob{}, fmt.Errorf("load report %s: %w", key, err)
	}
	return domain.Blob{Data: doc.Data, ContentType: doc.ContentType, CreatedAt: doc.CreatedAt}, nil
}

func (s *BlobStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Connect opens a client and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
