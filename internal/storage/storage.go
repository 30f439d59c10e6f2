package storage

import (
	"context"
	"errors"
	"io"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrBucketNotFound  = errors.New("bucket not found")
)

// ProfileStorage is the persistence API holding profile records.
type ProfileStorage interface {
	CreateProfile(ctx context.Context, req domain.CreateProfileRequest) (*domain.Profile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, req domain.UpdateProfileRequest) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	// ListProfiles returns every profile, most recently created first.
	ListProfiles(ctx context.Context) ([]*domain.Profile, error)
	Ping(ctx context.Context) error
	Close() error
}

// ObjectStorage is the bucket holding uploaded avatar images.
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (path string, err error)
	PublicURL(path string) string
	Remove(ctx context.Context, path string) error
	BucketExists(ctx context.Context) (bool, error)
	// Host is the host name every public URL points to.
	Host() string
}
