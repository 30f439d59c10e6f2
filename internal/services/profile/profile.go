package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/metrics"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
)

// Service owns the profile list: remote CRUD through storage plus the
// in-memory copy the pages render from. Validation happens before it is called.
type Service struct {
	log     *slog.Logger
	storage storage.ProfileStorage
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	cache   []domain.Profile
	loaded  bool
	lastErr string

	updates *updateTracker
}

func New(log *slog.Logger, storage storage.ProfileStorage, m *metrics.Metrics) *Service {
	return &Service{
		log:     log,
		storage: storage,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		updates: newUpdateTracker(),
	}
}

// List fetches every profile, newest first, and replaces the cache.
// On failure the previous cache is kept.
func (s *Service) List(ctx context.Context) ([]domain.Profile, error) {
	const op = "services.profile.List"

	log := s.log.With(slog.String("op", op))

	started := time.Now()
	records, err := s.storage.ListProfiles(ctx)
	s.observe("list", started)
	if err != nil {
		log.Error("failed to list profiles", sl.Err(err))
		s.fail("list", describe(err, "failed to load profiles"))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profiles := make([]domain.Profile, 0, len(records))
	for _, p := range records {
		if p != nil {
			profiles = append(profiles, *p)
		}
	}

	s.mu.Lock()
	s.cache = profiles
	s.loaded = true
	s.lastErr = ""
	s.mu.Unlock()

	s.record("list", metrics.ResultOK)
	log.Debug("profiles listed", slog.Int("count", len(profiles)))

	return s.Profiles(), nil
}

// Profiles returns a copy of the cached list.
func (s *Service) Profiles() []domain.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Profile, len(s.cache))
	copy(out, s.cache)
	return out
}

// Loaded reports whether at least one List call has succeeded.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LastError is the readable message of the most recent failure.
func (s *Service) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Profile, error) {
	const op = "services.profile.Get"

	s.mu.RLock()
	for _, p := range s.cache {
		if p.ID == id {
			s.mu.RUnlock()
			return &p, nil
		}
	}
	s.mu.RUnlock()

	profile, err := s.storage.GetProfile(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrProfileNotFound) {
			s.log.Error("failed to get profile", slog.String("op", op), slog.String("profile_id", id), sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return profile, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error) {
	const op = "services.profile.Create"

	log := s.log.With(slog.String("op", op))

	started := time.Now()
	profile, err := s.storage.CreateProfile(ctx, req)
	s.observe("create", started)
	if err != nil {
		log.Error("failed to create profile", sl.Err(err))
		s.fail("create", describe(err, "failed to create profile"))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	cache := make([]domain.Profile, 0, len(s.cache)+1)
	cache = append(cache, *profile)
	for _, p := range s.cache {
		if p.ID != profile.ID {
			cache = append(cache, p)
		}
	}
	s.cache = cache
	s.mu.Unlock()

	s.record("create", metrics.ResultOK)
	log.Info("profile created", slog.String("profile_id", profile.ID))

	return profile, nil
}

// Update sends only the fields set in req plus a fresh updated_at.
func (s *Service) Update(ctx context.Context, id string, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	const op = "services.profile.Update"

	log := s.log.With(
		slog.String("op", op),
		slog.String("profile_id", id),
	)

	req.ID = id
	req.UpdatedAt = s.now()

	s.updates.start(id, req.UpdatedAt)
	defer s.updates.complete(id)

	log.Debug("updating profile",
		slog.Bool("nickname", req.Nickname != nil),
		slog.Bool("age", req.Age != nil),
		slog.Bool("thumbnail_url", req.ThumbnailURL != nil),
	)

	started := time.Now()
	profile, err := s.storage.UpdateProfile(ctx, req)
	s.observe("update", started)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			log.Warn("profile not found")
		} else {
			log.Error("failed to update profile", sl.Err(err))
		}
		s.fail("update", describe(err, "failed to update profile"))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	for i := range s.cache {
		if s.cache[i].ID != profile.ID {
			continue
		}
		// a response that finished late must not roll back a newer record
		if profile.UpdatedAt.Before(s.cache[i].UpdatedAt) {
			log.Warn("stale update response ignored by cache",
				slog.Time("response_updated_at", profile.UpdatedAt),
				slog.Time("cached_updated_at", s.cache[i].UpdatedAt),
			)
			break
		}
		s.cache[i] = *profile
		break
	}
	s.mu.Unlock()

	s.record("update", metrics.ResultOK)
	log.Info("profile updated")

	return profile, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "services.profile.Delete"

	log := s.log.With(
		slog.String("op", op),
		slog.String("profile_id", id),
	)

	started := time.Now()
	err := s.storage.DeleteProfile(ctx, id)
	s.observe("delete", started)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			log.Warn("profile not found")
		} else {
			log.Error("failed to delete profile", sl.Err(err))
		}
		s.fail("delete", describe(err, "failed to delete profile"))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	for i := range s.cache {
		if s.cache[i].ID == id {
			s.cache = append(s.cache[:i:i], s.cache[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.record("delete", metrics.ResultOK)
	log.Info("profile deleted")

	return nil
}

// UpdateInProgress reports whether an Update for id is waiting on storage.
func (s *Service) UpdateInProgress(id string) bool {
	return s.updates.inFlight(id)
}

// LastUpdateTime is when the most recent Update for id was issued.
func (s *Service) LastUpdateTime(id string) (time.Time, bool) {
	return s.updates.last(id)
}

func (s *Service) fail(operation, msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	s.record(operation, metrics.ResultError)
}

func (s *Service) record(operation, result string) {
	if s.metrics != nil {
		s.metrics.ProfileOperation(operation, result)
	}
}

func (s *Service) observe(operation string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRemote("profile_"+operation, time.Since(started).Seconds())
	}
}

func describe(err error, fallback string) string {
	if errors.Is(err, storage.ErrProfileNotFound) {
		return "profile not found"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fallback + ": the server took too long to answer"
	}
	return fallback
}
