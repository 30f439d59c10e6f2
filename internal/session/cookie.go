package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type CookieOptions struct {
	Name   string
	Secret string
	TTL    time.Duration
	Secure bool
}

// CookieBackend keeps the snapshot in the browser as a signed token, so a
// hand-edited cookie reads as corrupt.
type CookieBackend struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
}

type snapshotClaims struct {
	Profile json.RawMessage `json:"profile"`
	jwt.RegisteredClaims
}

func NewCookieBackend(opts CookieOptions) (*CookieBackend, error) {
	const op = "session.NewCookieBackend"

	if len(opts.Secret) < 16 {
		return nil, fmt.Errorf("%s: secret must be at least 16 bytes", op)
	}
	if opts.Name == "" {
		opts.Name = SlotName
	}
	if opts.TTL <= 0 {
		opts.TTL = 365 * 24 * time.Hour
	}

	return &CookieBackend{
		name:   opts.Name,
		secret: []byte(opts.Secret),
		ttl:    opts.TTL,
		secure: opts.Secure,
	}, nil
}

func (b *CookieBackend) Slot(w http.ResponseWriter, r *http.Request) Slot {
	return &cookieSlot{backend: b, w: w, r: r}
}

type cookieSlot struct {
	backend *CookieBackend
	w       http.ResponseWriter
	r       *http.Request
}

func (s *cookieSlot) Read(_ context.Context) ([]byte, error) {
	c, err := s.r.Cookie(s.backend.name)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	claims := &snapshotClaims{}
	token, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (any, error) {
		return s.backend.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !token.Valid || len(claims.Profile) == 0 {
		return nil, ErrCorrupt
	}

	return claims.Profile, nil
}

func (s *cookieSlot) Write(_ context.Context, data []byte) error {
	now := time.Now()

	claims := snapshotClaims{
		Profile: json.RawMessage(data),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.backend.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.backend.secret)
	if err != nil {
		return fmt.Errorf("sign snapshot: %w", err)
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     s.backend.name,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(s.backend.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.backend.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *cookieSlot) Remove(_ context.Context) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.backend.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.backend.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
