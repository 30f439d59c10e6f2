// Package session remembers which profile is active in a browser.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
)

// SlotName is the per-browser key the active profile snapshot lives under.
const SlotName = "kidsedu_current_profile"

var (
	ErrEmpty   = errors.New("session slot is empty")
	ErrCorrupt = errors.New("session slot is corrupt")
)

// Slot is the per-browser storage cell for one serialized profile.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Remove(ctx context.Context) error
}

// Backend hands out the slot belonging to the browser behind r.
type Backend interface {
	Slot(w http.ResponseWriter, r *http.Request) Slot
}

type Manager struct {
	log     *slog.Logger
	backend Backend
}

func NewManager(log *slog.Logger, backend Backend) *Manager {
	return &Manager{
		log:     log,
		backend: backend,
	}
}

// Selector returns the active-profile selector for one request.
func (m *Manager) Selector(w http.ResponseWriter, r *http.Request) *Selector {
	return NewSelector(m.log, m.backend.Slot(w, r))
}

// Selector holds the active profile of one browser. It never consults the
// profile store: what it returns is the snapshot taken when the profile was
// selected.
type Selector struct {
	log     *slog.Logger
	slot    Slot
	loaded  bool
	current *domain.Profile
}

func NewSelector(log *slog.Logger, slot Slot) *Selector {
	return &Selector{
		log:  log,
		slot: slot,
	}
}

// Get loads the snapshot on first use. An empty or unreadable slot yields nil;
// unreadable data is removed. A backend failure is returned and leaves the
// selector unloaded.
func (s *Selector) Get(ctx context.Context) (*domain.Profile, error) {
	const op = "session.Selector.Get"

	if s.loaded {
		return s.current, nil
	}

	log := s.log.With(slog.String("op", op))

	raw, err := s.slot.Read(ctx)
	switch {
	case errors.Is(err, ErrEmpty):
		s.loaded = true
		return nil, nil
	case errors.Is(err, ErrCorrupt):
		log.Warn("discarding unreadable active profile", sl.Err(err))
		s.discard(ctx)
		return nil, nil
	case err != nil:
		log.Error("failed to read active profile", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil || p.ID == "" {
		log.Warn("discarding malformed active profile", sl.Err(err))
		s.discard(ctx)
		return nil, nil
	}

	s.current = &p
	s.loaded = true

	return s.current, nil
}

// Set replaces the active profile and persists it. A nil profile clears it.
func (s *Selector) Set(ctx context.Context, p *domain.Profile) error {
	const op = "session.Selector.Set"

	if p == nil {
		if err := s.slot.Remove(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.current = nil
		s.loaded = true
		return nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.slot.Write(ctx, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	snapshot := *p
	s.current = &snapshot
	s.loaded = true

	return nil
}

func (s *Selector) Clear(ctx context.Context) error {
	return s.Set(ctx, nil)
}

// Loaded reports whether the slot has been read successfully.
func (s *Selector) Loaded() bool {
	return s.loaded
}

func (s *Selector) discard(ctx context.Context) {
	if err := s.slot.Remove(ctx); err != nil {
		s.log.Warn("failed to remove active profile slot", sl.Err(err))
	}
	s.current = nil
	s.loaded = true
}
