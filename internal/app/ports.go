package app

import (
	"context"

	"exit-readiness-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ReportRenderer turns a score summary into a PDF document.
type ReportRenderer interface {
	Render(ctx context.Context, summary domain.ScoreSummary, email string) ([]byte, error)
}

// BlobStore keeps rendered reports. Get returns domain.ErrReportNotFound for unknown keys.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (domain.Blob, error)
}

// CRMClient is the subset of CRM operations the submission pipeline needs.
// CreateContact returns an error matching domain.ErrDuplicateContact when the
// email is already known; CreateTag matches domain.ErrDuplicateTag likewise.
type CRMClient interface {
	CreateContact(ctx context.Context, contact domain.Contact) (string, error)
	UpdateContact(ctx context.Context, contactID string, contact domain.Contact) error
	FindContactByEmail(ctx context.Context, email string) (string, error)
	AddToList(ctx context.Context, contactID, listID string) error
	FindTagByName(ctx context.Context, name string) (string, error)
	CreateTag(ctx context.Context, name string) (string, error)
	AttachTag(ctx context.Context, contactID, tagID string) error
}

// Pinger is implemented by collaborators that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}
