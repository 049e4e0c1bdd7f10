package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"exit-readiness-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewBlobStore(newClient(mr), time.Hour)
	ctx := context.Background()
	data := []byte{'%', 'P', 'D', 'F', 0x00, 0xff}

	if err := store.Put(ctx, "exit-readiness-0123456789abcdef.pdf", data, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	blob, err := store.Get(ctx, "exit-readiness-0123456789abcdef.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(blob.Data) != string(data) || blob.ContentType != "application/pdf" {
		t.Fatalf("unexpected blob %+v", blob)
	}
	if ttl := mr.TTL("report:exit-readiness-0123456789abcdef.pdf"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestBlobStoreMissingKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewBlobStore(newClient(mr), 0)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}
