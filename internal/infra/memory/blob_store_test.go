package memory

import (
	"context"
	"errors"
	"testing"

	"exit-readiness-service/internal/domain"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	store := NewBlobStore()
	data := []byte("%PDF-1.3")

	if err := store.Put(context.Background(), "exit-readiness-abc.pdf", data, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'X'

	blob, err := store.Get(context.Background(), "exit-readiness-abc.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(blob.Data) != "%PDF-1.3" {
		t.Fatalf("stored bytes changed with caller buffer: %q", blob.Data)
	}
	if blob.ContentType != "application/pdf" || blob.CreatedAt.IsZero() {
		t.Fatalf("unexpected blob metadata %+v", blob)
	}
}

func TestBlobStoreMissingKey(t *testing.T) {
	store := NewBlobStore()
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}
