package memory

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
)

func TestStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, err := s.CreateProfile(ctx, domain.CreateProfileRequest{Nickname: gofakeit.FirstName(), Age: 5})
	require.NoError(t, err)
	second, err := s.CreateProfile(ctx, domain.CreateProfileRequest{Nickname: gofakeit.FirstName(), Age: 6})
	require.NoError(t, err)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))

	list, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	thumb := "https://abc.supabase.co/a.png"
	updated, err := s.UpdateProfile(ctx, domain.UpdateProfileRequest{ID: first.ID, ThumbnailURL: &thumb})
	require.NoError(t, err)
	assert.Equal(t, first.Nickname, updated.Nickname)
	assert.Equal(t, thumb, updated.Thumbnail())
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))

	thumb = "mutated"
	got, err := s.GetProfile(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co/a.png", got.Thumbnail())

	require.NoError(t, s.DeleteProfile(ctx, first.ID))
	require.ErrorIs(t, s.DeleteProfile(ctx, first.ID), storage.ErrProfileNotFound)

	_, err = s.GetProfile(ctx, first.ID)
	require.ErrorIs(t, err, storage.ErrProfileNotFound)
}

func TestStorage_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ListProfiles(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
