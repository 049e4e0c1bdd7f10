package memory

import (
	"context"
	"sync"
	"time"

	"exit-readiness-service/internal/domain"
)

// BlobStore is an in-memory implementation of app.BlobStore for local runs and tests.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]domain.Blob
	now   func() time.Time
}

func NewBlobStore() *BlobStore {
	return &BlobStore{
		blobs: make(map[string]domain.Blob),
		now:   time.Now,
	}
}

func (s *BlobStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	copied := append([]byte(nil), data...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = domain.Blob{Data: copied, ContentType: contentType, CreatedAt: s.now()}
	return nil
}

func (s *BlobStore) Get(_ context.Context, key string) (domain.Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return domain.Blob{}, domain.ErrReportNotFound
	}
	return blob, nil
}

// Ping always succeeds.
func (s *BlobStore) Ping(context.Context) error { return nil }
