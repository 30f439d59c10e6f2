package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultSessionCookie = "kidsedu_sid"

type RedisOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// RedisBackend keeps the snapshot server side. The browser only carries a
// random session id.
type RedisBackend struct {
	client     redis.UniversalClient
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewRedisBackend(client redis.UniversalClient, opts RedisOptions) *RedisBackend {
	if opts.CookieName == "" {
		opts.CookieName = DefaultSessionCookie
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}

	return &RedisBackend{
		client:     client,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
	}
}

func (b *RedisBackend) Slot(w http.ResponseWriter, r *http.Request) Slot {
	return &redisSlot{backend: b, w: w, r: r}
}

// Ping checks the connection for the status check.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func key(sid string) string {
	return SlotName + ":" + sid
}

type redisSlot struct {
	backend *RedisBackend
	w       http.ResponseWriter
	r       *http.Request
	sid     string
}

// session returns the browser's session id, issuing a new one when create is set.
func (s *redisSlot) session(create bool) string {
	if s.sid != "" {
		return s.sid
	}

	if c, err := s.r.Cookie(s.backend.cookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			s.sid = id.String()
			return s.sid
		}
	}

	if !create {
		return ""
	}

	s.sid = uuid.NewString()
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.backend.cookieName,
		Value:    s.sid,
		Path:     "/",
		MaxAge:   int(s.backend.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.backend.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s.sid
}

func (s *redisSlot) Read(ctx context.Context) ([]byte, error) {
	sid := s.session(false)
	if sid == "" {
		return nil, ErrEmpty
	}

	raw, err := s.backend.client.Get(ctx, key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return raw, nil
}

func (s *redisSlot) Write(ctx context.Context, data []byte) error {
	sid := s.session(true)

	if err := s.backend.client.Set(ctx, key(sid), data, s.backend.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisSlot) Remove(ctx context.Context) error {
	sid := s.session(false)
	if sid == "" {
		return nil
	}

	if err := s.backend.client.Del(ctx, key(sid)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
