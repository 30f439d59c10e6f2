// Package memory keeps profiles in process memory. It backs the "memory"
// persistence driver for local runs and stands in for the remote API in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
)

type Storage struct {
	mu       sync.Mutex
	profiles []domain.Profile
	last     time.Time
}

func New() *Storage {
	return &Storage{}
}

func (s *Storage) Close() error { return nil }

func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

// tick returns a strictly increasing timestamp so created_at ordering is total.
func (s *Storage) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func (s *Storage) CreateProfile(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	p := domain.Profile{
		ID:           uuid.New().String(),
		Nickname:     req.Nickname,
		Age:          req.Age,
		ThumbnailURL: cloneString(req.ThumbnailURL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.profiles = append(s.profiles, p)

	return clone(p), nil
}

func (s *Storage) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	const op = "storage.memory.GetProfile"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
	}
	return clone(s.profiles[i]), nil
}

func (s *Storage) UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	const op = "storage.memory.UpdateProfile"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(req.ID)
	if i < 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
	}

	p := s.profiles[i]
	if req.Nickname != nil {
		p.Nickname = *req.Nickname
	}
	if req.Age != nil {
		p.Age = *req.Age
	}
	if req.ThumbnailURL != nil {
		p.ThumbnailURL = cloneString(req.ThumbnailURL)
	}
	if req.UpdatedAt.IsZero() {
		p.UpdatedAt = s.tick()
	} else {
		p.UpdatedAt = req.UpdatedAt
	}
	s.profiles[i] = p

	return clone(p), nil
}

func (s *Storage) DeleteProfile(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteProfile"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrProfileNotFound)
	}
	s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
	return nil
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, clone(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Storage) index(id string) int {
	for i := range s.profiles {
		if s.profiles[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(p domain.Profile) *domain.Profile {
	p.ThumbnailURL = cloneString(p.ThumbnailURL)
	return &p
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
