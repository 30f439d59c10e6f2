// Package objectstore is a client for the hosted storage API that keeps avatar images.
package objectstore

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
)

const DefaultBucket = "profile-images"

type Client struct {
	baseURL      string
	host         string
	bucket       string
	apiKey       string
	cacheControl string
	client       *http.Client
	log          *slog.Logger
}

type Options struct {
	BaseURL      string
	APIKey       string
	Bucket       string
	CacheControl string
	Timeout      time.Duration
}

func New(opts Options, log *slog.Logger) (*Client, error) {
	const op = "storage.objectstore.New"

	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", op, opts.BaseURL)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", op)
	}
	if opts.Bucket == "" {
		opts.Bucket = DefaultBucket
	}
	if opts.CacheControl == "" {
		opts.CacheControl = "3600"
	}

	return &Client{
		baseURL:      u.String(),
		host:         u.Hostname(),
		bucket:       opts.Bucket,
		apiKey:       opts.APIKey,
		cacheControl: opts.CacheControl,
		client:       &http.Client{Timeout: opts.Timeout},
		log:          log,
	}, nil
}

func (c *Client) Host() string {
	return c.host
}

func (c *Client) Bucket() string {
	return c.bucket
}

// Upload stores body under key without overwriting an existing object and
// returns the object path inside the bucket.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	const op = "storage.objectstore.Upload"

	target := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, escapePath(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("cache-control", "max-age="+c.cacheControl)
	req.Header.Set("x-upsert", "false")

	if err := c.do(req, nil); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	c.log.Debug("object uploaded", slog.String("key", key), slog.String("bucket", c.bucket))

	return key, nil
}

func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, escapePath(path))
}

func (c *Client) Remove(ctx context.Context, path string) error {
	const op = "storage.objectstore.Remove"

	payload, err := json.Marshal(map[string][]string{"prefixes": {path}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	target := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, c.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) BucketExists(ctx context.Context) (bool, error) {
	const op = "storage.objectstore.BucketExists"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/storage/v1/bucket", nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	c.authorize(req)

	var buckets []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.do(req, &buckets); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, b := range buckets {
		if b.Name == c.bucket {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
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
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(raw))
		if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
			msg = payload.Message
		}
		return fmt.Errorf("storage api: status %d: %s", resp.StatusCode, msg)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
