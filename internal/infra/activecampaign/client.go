// Package activecampaign talks to the ActiveCampaign v3 REST API.
package activecampaign

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"exit-readiness-service/internal/domain"
	"exit-readiness-service/internal/retry"
	"go.uber.org/zap"
)

const (
	serviceName  = "activecampaign"
	maxErrorBody = 2048
	pingTimeout  = 5 * time.Second
)

// Client implements app.CRMClient. Every call goes through doRequest and the injected retry policy.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the account at baseURL (e.g. https://acct.api-us1.com).
func NewClient(baseURL, token string, policy retry.Policy, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		policy:     policy,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("service", serviceName))
	return c
}

type fieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type contactPayload struct {
	Email       string       `json:"email"`
	FirstName   string       `json:"firstName,omitempty"`
	FieldValues []fieldValue `json:"fieldValues,omitempty"`
}

type contactEnvelope struct {
	Contact contactPayload `json:"contact"`
}

type idEnvelope struct {
	Contact *struct {
		ID string `json:"id"`
	} `json:"contact,omitempty"`
	Tag *struct {
		ID string `json:"id"`
	} `json:"tag,omitempty"`
}

type contactList struct {
	Contacts []struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"contacts"`
}

type tagList struct {
	Tags []struct {
		ID  string `json:"id"`
		Tag string `json:"tag"`
	} `json:"tags"`
}

func toPayload(c domain.Contact) contactEnvelope {
	payload := contactPayload{Email: c.Email, FirstName: c.FirstName}
	for _, f := range c.Fields {
		payload.FieldValues = append(payload.FieldValues, fieldValue{Field: f.Field, Value: f.Value})
	}
	return contactEnvelope{Contact: payload}
}

// CreateContact creates a contact. An existing email yields an error matching domain.ErrDuplicateContact.
func (c *Client) CreateContact(ctx context.Context, contact domain.Contact) (string, error) {
	var out idEnvelope
	if err := c.doRequest(ctx, "create contact", http.MethodPost, "/api/3/contacts", toPayload(contact), &out); err != nil {
		return "", err
	}
	if out.Contact == nil || out.Contact.ID == "" {
		return "", fmt.Errorf("create contact: response without contact id")
	}
	return out.Contact.ID, nil
}

func (c *Client) UpdateContact(ctx context.Context, contactID string, contact domain.Contact) error {
	return c.doRequest(ctx, "update contact", http.MethodPut, "/api/3/contacts/"+url.PathEscape(contactID), toPayload(contact), nil)
}

func (c *Client) FindContactByEmail(ctx context.Context, email string) (string, error) {
	var out contactList
	path := "/api/3/contacts?" + url.Values{"email": {email}}.Encode()
	if err := c.doRequest(ctx, "find contact", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	for _, contact := range out.Contacts {
		if strings.EqualFold(contact.Email, email) {
			return contact.ID, nil
		}
	}
	if len(out.Contacts) > 0 {
		return out.Contacts[0].ID, nil
	}
	return "", domain.ErrContactNotFound
}

// AddToList subscribes the contact (status 1 = active).
func (c *Client) AddToList(ctx context.Context, contactID, listID string) error {
	body := map[string]any{
		"contactList": map[string]string{
			"list":    listID,
			"contact": contactID,
			"status":  "1",
		},
	}
	return c.doRequest(ctx, "add to list", http.MethodPost, "/api/3/contactLists", body, nil)
}

// FindTagByName returns the id of the tag whose name matches exactly; search results are fuzzy.
func (c *Client) FindTagByName(ctx context.Context, name string) (string, error) {
	var out tagList
	path := "/api/3/tags?" + url.Values{"search": {name}}.Encode()
	if err := c.doRequest(ctx, "find tag", http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	for _, tag := range out.Tags {
		if tag.Tag == name {
			return tag.ID, nil
		}
	}
	return "", domain.ErrTagNotFound
}

// CreateTag creates a contact tag. An existing name yields an error matching domain.ErrDuplicateTag.
func (c *Client) CreateTag(ctx context.Context, name string) (string, error) {
	body := map[string]any{
		"tag": map[string]string{
			"tag":     name,
			"tagType": "contact",
		},
	}
	var out idEnvelope
	if err := c.doRequest(ctx, "create tag", http.MethodPost, "/api/3/tags", body, &out); err != nil {
		return "", err
	}
	if out.Tag == nil || out.Tag.ID == "" {
		return "", fmt.Errorf("create tag: response without tag id")
	}
	return out.Tag.ID, nil
}

func (c *Client) AttachTag(ctx context.Context, contactID, tagID string) error {
	body := map[string]any{
		"contactTag": map[string]string{
			"contact": contactID,
			"tag":     tagID,
		},
	}
	return c.doRequest(ctx, "attach tag", http.MethodPost, "/api/3/contactTags", body, nil)
}

// Ping checks credentials with a single short request.
func (c *Client) Ping(ctx context.Context) error {
	policy := c.policy.Single()
	policy.Timeout = pingTimeout
	return c.do(ctx, policy, "ping", http.MethodGet, "/api/3/users/me", nil, nil)
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, in, out any) error {
	return c.do(ctx, c.policy, op, method, path, in, out)
}

func (c *Client) do(ctx context.Context, policy retry.Policy, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
	}

	log := c.logger.With(zap.String("op", op), zap.String("method", method), zap.String("path", path))
	notify := func(attempt int, err error, wait time.Duration) {
		log.Warn("retrying request", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}

	err := policy.Do(ctx, notify, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("%s: build request: %w", op, err))
		}
		req.Header.Set("Api-Token", c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &domain.UpstreamTransportError{Service: serviceName, Op: op, Err: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return &domain.UpstreamTransportError{Service: serviceName, Op: op, Err: err}
		}
		log.Debug("response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(respBody)))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			rejection := &domain.UpstreamRejectionError{
				Service:  serviceName,
				Op:       op,
				Status:   resp.StatusCode,
				Body:     truncate(string(respBody), maxErrorBody),
				Conflict: resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(string(respBody)), "duplicate"),
			}
			if rejection.Retryable() {
				return rejection
			}
			return retry.Permanent(rejection)
		}

		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return retry.Permanent(fmt.Errorf("%s: decode response: %w", op, err))
		}
		return nil
	})
	if err != nil {
		var rejection *domain.UpstreamRejectionError
		if errors.As(err, &rejection) && rejection.Conflict {
			log.Info("resource already exists", zap.Int("status", rejection.Status))
		} else {
			log.Error("request failed", zap.Error(err))
		}
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
