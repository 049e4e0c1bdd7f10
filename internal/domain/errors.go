package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrDomainNotFound indicates a submitted domain ID is invalid.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrReportNotFound is returned by blob stores for unknown keys.
	ErrReportNotFound = errors.New("report not found")
	// ErrContactNotFound is returned when no CRM contact matches an email.
	ErrContactNotFound = errors.New("contact not found")
	// ErrTagNotFound is returned when no CRM tag has the requested name.
	ErrTagNotFound = errors.New("tag not found")
	// ErrDuplicateContact matches CRM rejections caused by an existing contact.
	ErrDuplicateContact = errors.New("duplicate contact")
	// ErrDuplicateTag matches CRM rejections caused by an existing tag.
	ErrDuplicateTag = errors.New("duplicate tag")
)

// ValidationError reports missing or malformed caller input. No side effects
// have happened when it is returned.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigurationError lists required settings that are missing. It never carries values.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// UpstreamTransportError is a network-level failure talking to an external service.
type UpstreamTransportError struct {
	Service string
	Op      string
	Err     error
}

func (e *UpstreamTransportError) Error() string {
	return fmt.Sprintf("%s %s: transport error: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamTransportError) Unwrap() error { return e.Err }

// UpstreamRejectionError is a non-success response from an external service.
type UpstreamRejectionError struct {
	Service string
	Op      string
	Status  int
	Body    string
	// Conflict marks rejections caused by the resource already existing.
	Conflict bool
}

func (e *UpstreamRejectionError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Op, e.Status, e.Body)
}

// Is lets callers test conflicts with errors.Is(err, ErrDuplicateContact) or ErrDuplicateTag.
func (e *UpstreamRejectionError) Is(target error) bool {
	return e.Conflict && (target == ErrDuplicateContact || target == ErrDuplicateTag)
}

// Retryable reports whether the rejection is worth another attempt.
func (e *UpstreamRejectionError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
