package activecampaign

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"exit-readiness-service/internal/domain"
	"exit-readiness-service/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() retry.Policy {
	return retry.Policy{Timeout: time.Second, MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestCreateContactSendsFieldValues(t *testing.T) {
	var got map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/3/contacts", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("Api-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"contact":{"id":"42","email":"a@b.co"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", fastPolicy())
	id, err := c.CreateContact(context.Background(), domain.Contact{
		Email:     "a@b.co",
		FirstName: "Ada",
		Fields:    []domain.FieldValue{{Field: "11", Value: "60"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.Equal(t, "a@b.co", got["contact"]["email"])
	assert.Equal(t, "Ada", got["contact"]["firstName"])
	assert.Equal(t, []any{map[string]any{"field": "11", "value": "60"}}, got["contact"]["fieldValues"])
}

func TestCreateContactDuplicateIsConflict(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":[{"title":"Email address already exists in the system.","code":"duplicate"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", fastPolicy())
	_, err := c.CreateContact(context.Background(), domain.Contact{Email: "a@b.co"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateContact))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")

	var rejection *domain.UpstreamRejectionError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, 422, rejection.Status)
}

func TestRetriesServerErrorsAndRateLimits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"contactList":{"id":"9"}}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", fastPolicy())
	require.NoError(t, c.AddToList(context.Background(), "42", "7"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", fastPolicy())
	err := c.AttachTag(context.Background(), "42", "3")

	var rejection *domain.UpstreamRejectionError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, 503, rejection.Status)
	assert.Equal(t, "maintenance", rejection.Body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTransportErrorIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := NewClient(addr, "secret", retry.Policy{Timeout: time.Second, MaxAttempts: 2})
	_, err := c.FindTagByName(context.Background(), "score-60")

	var transport *domain.UpstreamTransportError
	require.True(t, errors.As(err, &transport), "got %v", err)
	var rejection *domain.UpstreamRejectionError
	assert.False(t, errors.As(err, &rejection))
}

func TestAddToListBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"contactList":{"list":"7","contact":"42","status":"1"}}`, string(body))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL, "secret", fastPolicy()).AddToList(context.Background(), "42", "7"))
}

func TestFindTagByNameRequiresExactMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "score-6", r.URL.Query().Get("search"))
		_, _ = w.Write([]byte(`{"tags":[{"id":"1","tag":"score-60"},{"id":"2","tag":"score-65"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", fastPolicy())
	_, err := c.FindTagByName(context.Background(), "score-6")
	assert.True(t, errors.Is(err, domain.ErrTagNotFound))
}

func TestCreateTagAndAttach(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/3/tags", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"tag":{"tag":"score-60","tagType":"contact"}}`, string(body))
		_, _ = w.Write([]byte(`{"tag":{"id":"77","tag":"score-60"}}`))
	})
	mux.HandleFunc("/api/3/contactTags", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"contactTag":{"contact":"42","tag":"77"}}`, string(body))
		_, _ = w.Write([]byte(`{"contactTag":{"id":"5"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", fastPolicy())
	id, err := c.CreateTag(context.Background(), "score-60")
	require.NoError(t, err)
	assert.Equal(t, "77", id)
	require.NoError(t, c.AttachTag(context.Background(), "42", id))
}

func TestFindContactAndUpdate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/3/contacts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a@b.co", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`{"contacts":[{"id":"42","email":"A@b.co"}]}`))
	})
	mux.HandleFunc("/api/3/contacts/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_, _ = w.Write([]byte(`{"contact":{"id":"42"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "secret", fastPolicy())
	id, err := c.FindContactByEmail(context.Background(), "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	require.NoError(t, c.UpdateContact(context.Background(), id, domain.Contact{Email: "a@b.co"}))
}

func TestFindContactNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"contacts":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret", fastPolicy()).FindContactByEmail(context.Background(), "a@b.co")
	assert.True(t, errors.Is(err, domain.ErrContactNotFound))
}

func TestPingDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/3/users/me", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "secret", fastPolicy()).Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
