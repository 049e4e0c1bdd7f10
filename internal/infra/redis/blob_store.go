package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"exit-readiness-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// BlobStore keeps reports in Redis hashes:
// HSET report:{key} content_type {type} data {bytes} created_at {unix}
type BlobStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBlobStore creates a Redis-backed report store; ttl <= 0 keeps reports forever.
func NewBlobStore(client *redis.Client, ttl time.Duration) *BlobStore {
	return &BlobStore{client: client, ttl: ttl}
}

func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(key),
		"content_type", contentType,
		"data", data,
		"created_at", time.Now().Unix(),
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(key), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store report %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) (domain.Blob, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return domain.Blob{}, fmt.Errorf("load report %s: %w", key, err)
	}
	data, ok := fields["data"]
	if !ok {
		return domain.Blob{}, domain.ErrReportNotFound
	}
	blob := domain.Blob{Data: []byte(data), ContentType: fields["content_type"]}
	if ts, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		blob.CreatedAt = time.Unix(ts, 0)
	}
	return blob, nil
}

func (s *BlobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *BlobStore) key(key string) string {
	return "report:" + key
}
