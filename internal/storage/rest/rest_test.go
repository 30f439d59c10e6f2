package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
	"github.com/kimhyunwoooo/kids-edu/internal/storage"
)

type recorded struct {
	method string
	query  string
	prefer string
	apiKey string
	auth   string
	body   map[string]any
}

func newServer(t *testing.T, status int, reply string) (*Storage, *recorded) {
	t.Helper()

	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)

		rec.method = r.Method
		rec.query = r.URL.RawQuery
		rec.prefer = r.Header.Get("Prefer")
		rec.apiKey = r.Header.Get("apikey")
		rec.auth = r.Header.Get("Authorization")

		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	s, err := New(srv.URL, "anon-key", "profiles", time.Second, sl.Discard())
	require.NoError(t, err)
	return s, rec
}

const profileJSON = `{"id":"p1","nickname":"Mina","age":7,"thumbnail_url":null,"created_at":"2024-05-01T10:00:00Z","updated_at":"2024-05-01T10:00:00Z"}`

func TestNew_Validation(t *testing.T) {
	_, err := New("not a url", "key", "", time.Second, sl.Discard())
	require.Error(t, err)

	_, err = New("https://abc.supabase.co", "", "", time.Second, sl.Discard())
	require.Error(t, err)
}

func TestListProfiles(t *testing.T) {
	s, rec := newServer(t, http.StatusOK, "["+profileJSON+"]")

	profiles, err := s.ListProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Mina", profiles[0].Nickname)
	assert.Nil(t, profiles[0].ThumbnailURL)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Contains(t, rec.query, "order=created_at.desc")
	assert.Equal(t, "anon-key", rec.apiKey)
	assert.Equal(t, "Bearer anon-key", rec.auth)
	assert.Empty(t, rec.prefer)
}

func TestCreateProfile(t *testing.T) {
	s, rec := newServer(t, http.StatusCreated, "["+profileJSON+"]")

	p, err := s.CreateProfile(context.Background(), domain.CreateProfileRequest{Nickname: "Mina", Age: 7})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "return=representation", rec.prefer)
	assert.Equal(t, "Mina", rec.body["nickname"])
	assert.NotContains(t, rec.body, "thumbnail_url")
}

func TestUpdateProfile_SendsOnlyChangedFields(t *testing.T) {
	s, rec := newServer(t, http.StatusOK, "["+profileJSON+"]")

	nickname := gofakeit.FirstName()
	at := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	_, err := s.UpdateProfile(context.Background(), domain.UpdateProfileRequest{
		ID:        "p1",
		Nickname:  &nickname,
		UpdatedAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, "id=eq.p1", rec.query)
	assert.Equal(t, map[string]any{
		"nickname":   nickname,
		"updated_at": "2024-05-02T09:00:00Z",
	}, rec.body)
}

func TestUpdateProfile_Missing(t *testing.T) {
	s, _ := newServer(t, http.StatusOK, "[]")

	age := 6
	_, err := s.UpdateProfile(context.Background(), domain.UpdateProfileRequest{ID: "gone", Age: &age})
	require.ErrorIs(t, err, storage.ErrProfileNotFound)
}

func TestDeleteProfile(t *testing.T) {
	s, rec := newServer(t, http.StatusOK, "["+profileJSON+"]")

	require.NoError(t, s.DeleteProfile(context.Background(), "p1"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "id=eq.p1", rec.query)

	missing, _ := newServer(t, http.StatusOK, "[]")
	require.ErrorIs(t, missing.DeleteProfile(context.Background(), "p1"), storage.ErrProfileNotFound)
}

func TestGetProfile_Missing(t *testing.T) {
	s, _ := newServer(t, http.StatusOK, "[]")

	_, err := s.GetProfile(context.Background(), "nope")
	require.ErrorIs(t, err, storage.ErrProfileNotFound)
}

func TestAPIError(t *testing.T) {
	s, _ := newServer(t, http.StatusBadRequest, `{"code":"23514","message":"new row violates check constraint"}`)

	_, err := s.ListProfiles(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, err.Error(), "violates check constraint")
}

func TestPing(t *testing.T) {
	s, rec := newServer(t, http.StatusOK, "[]")

	require.NoError(t, s.Ping(context.Background()))
	assert.Contains(t, rec.query, "limit=1")
}
