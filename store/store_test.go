package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func setupRedis(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisFromClient(client)
	t.Cleanup(func() { s.Close() })
	return s
}

func setupMemory(t *testing.T) Store {
	return NewMemory()
}

var backends = map[string]func(t *testing.T) Store{
	"memory": setupMemory,
	"sqlite": setupSQLite,
	"redis":  setupRedis,
}

func testRecord(id string) *Record {
	now := time.Now().Truncate(time.Second)
	return &Record{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(7 * 24 * time.Hour),
		Values:    map[string]string{"identity": "token-value"},
	}
}

func TestStores(t *testing.T) {
	for name, setup := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("set and get", func(t *testing.T) {
				s := setup(t)
				ctx := context.Background()
				rec := testRecord("abc")

				require.NoError(t, s.Set(ctx, rec))

				got, err := s.Get(ctx, "abc")
				require.NoError(t, err)
				assert.Equal(t, "abc", got.ID)
				assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
				assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
				assert.Equal(t, "token-value", got.Values["identity"])
			})

			t.Run("missing", func(t *testing.T) {
				s := setup(t)
				_, err := s.Get(context.Background(), "nope")
				assert.ErrorIs(t, err, ErrSessionNotFound)
			})

			t.Run("overwrite", func(t *testing.T) {
				s := setup(t)
				ctx := context.Background()
				rec := testRecord("abc")
				require.NoError(t, s.Set(ctx, rec))

				rec.Values = map[string]string{"other": "x"}
				require.NoError(t, s.Set(ctx, rec))

				got, err := s.Get(ctx, "abc")
				require.NoError(t, err)
				assert.Equal(t, map[string]string{"other": "x"}, got.Values)
			})

			t.Run("delete", func(t *testing.T) {
				s := setup(t)
				ctx := context.Background()
				require.NoError(t, s.Set(ctx, testRecord("abc")))

				require.NoError(t, s.Delete(ctx, "abc"))
				_, err := s.Get(ctx, "abc")
				assert.ErrorIs(t, err, ErrSessionNotFound)

				assert.NoError(t, s.Delete(ctx, "abc"), "deleting a missing session is not an error")
			})

			t.Run("returned record is a copy", func(t *testing.T) {
				s := setup(t)
				ctx := context.Background()
				require.NoError(t, s.Set(ctx, testRecord("abc")))

				got, err := s.Get(ctx, "abc")
				require.NoError(t, err)
				got.Values["identity"] = "changed"

				again, err := s.Get(ctx, "abc")
				require.NoError(t, err)
				assert.Equal(t, "token-value", again.Values["identity"])
			})

			t.Run("concurrent access", func(t *testing.T) {
				s := setup(t)
				ctx := context.Background()

				var wg sync.WaitGroup
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						id := fmt.Sprintf("session-%d", i)
						if err := s.Set(ctx, testRecord(id)); err != nil {
							t.Errorf("failed to set in goroutine: %v", err)
							return
						}
						if _, err := s.Get(ctx, id); err != nil {
							t.Errorf("failed to get in goroutine: %v", err)
						}
					}(i)
				}
				wg.Wait()
			})
		})
	}
}

func TestMemorySweepsExpiredOnSet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stale := testRecord("stale")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, m.Set(ctx, stale))
	require.NoError(t, m.Set(ctx, testRecord("live")))
	assert.Equal(t, 2, m.Len(), "no sweep before the interval")

	m.now = func() time.Time { return time.Now().Add(memoryPruneEvery + time.Second) }
	require.NoError(t, m.Set(ctx, testRecord("fresh")))
	assert.Equal(t, 2, m.Len())

	_, err := m.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestRedisExpiredRecordIsNotStored(t *testing.T) {
	s := setupRedis(t)
	ctx := context.Background()

	rec := testRecord("abc")
	require.NoError(t, s.Set(ctx, rec))

	rec.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, s.Set(ctx, rec))

	_, err := s.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteDeleteExpired(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	live := testRecord("live")
	dead := testRecord("dead")
	dead.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Set(ctx, live))
	require.NoError(t, s.Set(ctx, dead))

	n, err := s.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, "dead")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), Config{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = New(context.Background(), Config{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	s.Close()

	mr := miniredis.RunT(t)
	s, err = New(context.Background(), Config{Driver: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, s)
	s.Close()

	_, err = New(context.Background(), Config{Driver: "mongo"})
	assert.Error(t, err)
}
