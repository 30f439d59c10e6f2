// Package rest talks to a hosted PostgREST-style database over HTTPS.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
)

// APIError is a non-2xx answer from the persistence API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("persistence api: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("persistence api: status %d: %s", e.Status, e.Message)
}

type Storage struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      *slog.Logger
}

func New(baseURL, apiKey, table string, timeout time.Duration, log *slog.Logger) (*Storage, error) {
	const op = "storage.rest.New"

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", op, baseURL)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: api key is required", op)
	}
	if table == "" {
		table = "profiles"
	}

	return &Storage{
		endpoint: u.String() + "/rest/v1/" + table,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}, nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.rest.Ping"

	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")

	var out []json.RawMessage
	if err := s.do(ctx, http.MethodGet, q, nil, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) CreateProfile(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error) {
	const op = "storage.rest.CreateProfile"

	var out []*domain.Profile
	if err := s.do(ctx, http.MethodPost, nil, req, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: insert returned no record", op)
	}

	return out[0], nil
}

func (s *Storage) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	const op = "storage.rest.GetProfile"

	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)

	var out []*domain.Profile
	if err := s.do(ctx, http.MethodGet, q, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
	}

	return out[0], nil
}

func (s *Storage) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	const op = "storage.rest.UpdateProfile"

	// only the changed columns are sent
	body := map[string]any{}
	if req.Nickname != nil {
		body["nickname"] = *req.Nickname
	}
	if req.Age != nil {
		body["age"] = *req.Age
	}
	if req.ThumbnailURL != nil {
		body["thumbnail_url"] = *req.ThumbnailURL
	}
	updatedAt := req.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	body["updated_at"] = updatedAt.Format(time.RFC3339Nano)

	q := url.Values{}
	q.Set("id", "eq."+req.ID)

	var out []*domain.Profile
	if err := s.do(ctx, http.MethodPatch, q, body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
	}

	return out[0], nil
}

func (s *Storage) DeleteProfile(ctx context.Context, id string) error {
	const op = "storage.rest.DeleteProfile"

	q := url.Values{}
	q.Set("id", "eq."+id)

	var out []json.RawMessage
	if err := s.do(ctx, http.MethodDelete, q, nil, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(out) == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
	}

	return nil
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	const op = "storage.rest.ListProfiles"

	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var out []*domain.Profile
	if err := s.do(ctx, http.MethodGet, q, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Storage) do(ctx context.Context, method string, query url.Values, in, out any) error {
	target := s.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}

	s.log.Debug("persistence api call",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
	)

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{Status: status}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	return apiErr
}
