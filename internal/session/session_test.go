package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kimhyunwoooo/kids-edu/internal/domain"
	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newCookieManager(t *testing.T, secret string) *Manager {
	t.Helper()

	backend, err := NewCookieBackend(CookieOptions{Secret: secret})
	require.NoError(t, err)
	return NewManager(sl.Discard(), backend)
}

func fakeProfile() *domain.Profile {
	thumb := "https://" + gofakeit.DomainName() + "/a.png"
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Profile{
		ID:           uuid.NewString(),
		Nickname:     gofakeit.FirstName(),
		Age:          gofakeit.IntRange(5, 10),
		ThumbnailURL: &thumb,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// roundTrip stores p through one request and returns the cookies the browser would keep.
func roundTrip(t *testing.T, m *Manager, p *domain.Profile) []*http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, m.Selector(w, r).Set(context.Background(), p))
	return w.Result().Cookies()
}

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/main", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

func TestNewCookieBackend_ShortSecret(t *testing.T) {
	_, err := NewCookieBackend(CookieOptions{Secret: "short"})
	require.Error(t, err)
}

func TestSelector_EmptyBrowser(t *testing.T) {
	m := newCookieManager(t, testSecret)

	sel := m.Selector(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	p, err := sel.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.True(t, sel.Loaded())
}

func TestSelector_CookieRoundTrip(t *testing.T) {
	m := newCookieManager(t, testSecret)
	want := fakeProfile()

	cookies := roundTrip(t, m, want)
	require.Len(t, cookies, 1)
	assert.Equal(t, SlotName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	sel := m.Selector(httptest.NewRecorder(), requestWith(cookies))
	got, err := sel.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Nickname, got.Nickname)
	assert.Equal(t, want.Age, got.Age)
	assert.Equal(t, *want.ThumbnailURL, got.Thumbnail())
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestSelector_ForeignSignatureIsDiscarded(t *testing.T) {
	foreign := newCookieManager(t, "ffffffffffffffffffffffffffffffff")
	cookies := roundTrip(t, foreign, fakeProfile())

	m := newCookieManager(t, testSecret)
	w := httptest.NewRecorder()
	sel := m.Selector(w, requestWith(cookies))

	got, err := sel.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	expired := w.Result().Cookies()
	require.Len(t, expired, 1)
	assert.Equal(t, SlotName, expired[0].Name)
	assert.Less(t, expired[0].MaxAge, 0)
}

func TestSelector_GarbageCookieIsDiscarded(t *testing.T) {
	m := newCookieManager(t, testSecret)
	w := httptest.NewRecorder()
	r := requestWith([]*http.Cookie{{Name: SlotName, Value: "not-a-token"}})

	got, err := m.Selector(w, r).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	require.Len(t, w.Result().Cookies(), 1)
}

func TestSelector_SnapshotWithoutIDIsDiscarded(t *testing.T) {
	backend, err := NewCookieBackend(CookieOptions{Secret: testSecret})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	slot := backend.Slot(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, slot.Write(context.Background(), []byte(`{"nickname":"민준"}`)))

	sel := NewSelector(sl.Discard(), backend.Slot(httptest.NewRecorder(), requestWith(w.Result().Cookies())))
	got, err := sel.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSelector_Clear(t *testing.T) {
	m := newCookieManager(t, testSecret)
	cookies := roundTrip(t, m, fakeProfile())

	w := httptest.NewRecorder()
	sel := m.Selector(w, requestWith(cookies))
	require.NoError(t, sel.Clear(context.Background()))

	got, err := sel.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestSelector_SetKeepsSnapshot(t *testing.T) {
	m := newCookieManager(t, testSecret)
	p := fakeProfile()

	sel := m.Selector(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, sel.Set(context.Background(), p))

	p.Nickname = "changed elsewhere"

	got, err := sel.Get(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "changed elsewhere", got.Nickname)
}

func newUnreachableRedis(t *testing.T) *RedisBackend {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisBackend(client, RedisOptions{})
}

func TestRedisSlot_NoSessionCookie(t *testing.T) {
	backend := newUnreachableRedis(t)
	slot := backend.Slot(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := slot.Read(context.Background())
	require.ErrorIs(t, err, ErrEmpty)
	require.NoError(t, slot.Remove(context.Background()))
}

func TestRedisSlot_InvalidSessionCookie(t *testing.T) {
	backend := newUnreachableRedis(t)
	r := requestWith([]*http.Cookie{{Name: DefaultSessionCookie, Value: "../../etc"}})

	_, err := backend.Slot(httptest.NewRecorder(), r).Read(context.Background())
	require.ErrorIs(t, err, ErrEmpty)
}

func TestSelector_BackendFailureIsReported(t *testing.T) {
	backend := newUnreachableRedis(t)
	m := NewManager(sl.Discard(), backend)
	r := requestWith([]*http.Cookie{{Name: DefaultSessionCookie, Value: uuid.NewString()}})

	sel := m.Selector(httptest.NewRecorder(), r)
	got, err := sel.Get(context.Background())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.False(t, sel.Loaded())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "kidsedu_current_profile:abc", key("abc"))
}
