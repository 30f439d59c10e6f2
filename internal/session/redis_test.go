package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhyunwoooo/kids-edu/internal/lib/logger/sl"
)

// mapStore answers GET, SET, DEL and PING from a map. Commands never reach a connection.
type mapStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMapStore() *mapStore {
	return &mapStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mapStore) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("unexpected dial to %s", addr)
	}
}

func (m *mapStore) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		return fmt.Errorf("pipelines are not supported")
	}
}

func (m *mapStore) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		args := cmd.Args()
		switch cmd.Name() {
		case "ping":
			cmd.(*redis.StatusCmd).SetVal("PONG")
		case "get":
			val, ok := m.data[fmt.Sprint(args[1])]
			if !ok {
				return redis.Nil
			}
			cmd.(*redis.StringCmd).SetVal(val)
		case "set":
			k := fmt.Sprint(args[1])
			switch v := args[2].(type) {
			case []byte:
				m.data[k] = string(v)
			default:
				m.data[k] = fmt.Sprint(v)
			}
			if len(args) >= 5 && args[3] == "ex" {
				if secs, ok := args[4].(int64); ok {
					m.ttls[k] = time.Duration(secs) * time.Second
				}
			}
			cmd.(*redis.StatusCmd).SetVal("OK")
		case "del":
			var n int64
			for _, a := range args[1:] {
				k := fmt.Sprint(a)
				if _, ok := m.data[k]; ok {
					delete(m.data, k)
					delete(m.ttls, k)
					n++
				}
			}
			cmd.(*redis.IntCmd).SetVal(n)
		default:
			return fmt.Errorf("unsupported command %q", cmd.Name())
		}
		return nil
	}
}

func (m *mapStore) get(k string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[k]
	return v, ok
}

func newMapRedis(t *testing.T, ttl time.Duration) (*RedisBackend, *mapStore) {
	t.Helper()

	store := newMapStore()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	client.AddHook(store)
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisBackend(client, RedisOptions{TTL: ttl}), store
}

func sessionCookie(t *testing.T, cookies []*http.Cookie) *http.Cookie {
	t.Helper()

	for _, c := range cookies {
		if c.Name == DefaultSessionCookie {
			return c
		}
	}
	t.Fatal("no session id cookie issued")
	return nil
}

func TestRedisBackend_RoundTrip(t *testing.T) {
	backend, store := newMapRedis(t, time.Hour)
	m := NewManager(sl.Discard(), backend)
	p := fakeProfile()

	cookies := roundTrip(t, m, p)
	sid := sessionCookie(t, cookies)

	_, err := uuid.Parse(sid.Value)
	require.NoError(t, err)
	assert.True(t, sid.HttpOnly)
	assert.Equal(t, int(time.Hour.Seconds()), sid.MaxAge)

	raw, ok := store.get(key(sid.Value))
	require.True(t, ok)
	assert.Contains(t, raw, p.ID)
	assert.Equal(t, time.Hour, store.ttls[key(sid.Value)])

	// a reload is a new request carrying only the session id
	sel := m.Selector(httptest.NewRecorder(), requestWith([]*http.Cookie{sid}))
	got, err := sel.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *p, *got)

	w := httptest.NewRecorder()
	require.NoError(t, m.Selector(w, requestWith([]*http.Cookie{sid})).Clear(context.Background()))
	_, ok = store.get(key(sid.Value))
	assert.False(t, ok)

	got, err = m.Selector(httptest.NewRecorder(), requestWith([]*http.Cookie{sid})).Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisBackend_ReusesSessionID(t *testing.T) {
	backend, store := newMapRedis(t, 0)
	m := NewManager(sl.Discard(), backend)

	sid := &http.Cookie{Name: DefaultSessionCookie, Value: uuid.NewString()}

	w := httptest.NewRecorder()
	require.NoError(t, m.Selector(w, requestWith([]*http.Cookie{sid})).Set(context.Background(), fakeProfile()))

	assert.Empty(t, w.Result().Cookies())
	_, ok := store.get(key(sid.Value))
	assert.True(t, ok)
}

func TestRedisBackend_CorruptSnapshotIsDiscarded(t *testing.T) {
	backend, store := newMapRedis(t, 0)
	m := NewManager(sl.Discard(), backend)

	sid := uuid.NewString()
	store.data[key(sid)] = "{not json"

	got, err := m.Selector(httptest.NewRecorder(), requestWith([]*http.Cookie{{Name: DefaultSessionCookie, Value: sid}})).
		Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, ok := store.get(key(sid))
	assert.False(t, ok)
}

func TestRedisBackend_Ping(t *testing.T) {
	backend, _ := newMapRedis(t, 0)
	require.NoError(t, backend.Ping(context.Background()))

	require.Error(t, newUnreachableRedis(t).Ping(context.Background()))
}
