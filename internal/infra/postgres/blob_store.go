package postgres

import (
	"context"
	"errors"
	"fmt"

	"exit-readiness-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// BlobStore keeps reports in the reports table.
type BlobStore struct {
	pool *pgxpool.Pool
}

func NewBlobStore(pool *pgxpool.Pool) *BlobStore {
	return &BlobStore{pool: pool}
}

func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (id, content_type, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content_type = EXCLUDED.content_type, data = EXCLUDED.data`,
		key, contentType, data)
	if err != nil {
		return fmt.Errorf("store report %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) (domain.Blob, error) {
	var blob domain.Blob
	err := s.pool.QueryRow(ctx, `SELECT data, content_type, created_at FROM reports WHERE id=$1`, key).
		Scan(&blob.Data, &blob.ContentType, &blob.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Blob{}, domain.ErrReportNotFound
	}
	if err != nil {
		return domain.Blob{}, fmt.Errorf("load report %s: %w", key, err)
	}
	return blob, nil
}

func (s *BlobStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
