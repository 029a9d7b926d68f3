package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/errors"
)

func TestMemoryStorePutGet(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(0, "")
	_, ok, err := s.Get(t.Context(), "_src_active")
	require.NoError(t, err)
	assert.False(t, ok)

	data := []byte(`[{"id":"/dev/video0"}]`)
	require.NoError(t, s.Put(t.Context(), "_src_active", data))
	data[0] = 'x'

	got, ok, err := s.Get(t.Context(), "_src_active")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"/dev/video0"}]`, string(got))
}

func TestMemoryStoreExpires(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(20*time.Millisecond, "")
	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))

	assert.Eventually(t, func() bool {
		_, ok, _ := s.Get(t.Context(), "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreSurvivesRestartViaFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session", "snapshot.gob")
	first := NewMemoryStore(time.Hour, path)
	require.NoError(t, first.Put(t.Context(), "_src_active", []byte("[]")))

	second := NewMemoryStore(time.Hour, path)
	got, ok, err := second.Get(t.Context(), "_src_active")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(got))
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisOptions{Address: mr.Addr(), TTL: time.Minute})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStorePutGet(t *testing.T) {
	t.Parallel()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Put(t.Context(), "_src_active", []byte(`[]`)))
	assert.True(t, mr.Exists(redisKeyPrefix+"_src_active"))
	assert.Equal(t, time.Minute, mr.TTL(redisKeyPrefix+"_src_active"))

	got, ok, err := s.Get(t.Context(), "_src_active")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(got))
}

func TestRedisStoreMissingKey(t *testing.T) {
	t.Parallel()
	s, _ := newRedisStore(t)

	got, ok, err := s.Get(t.Context(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedisStoreExpiry(t *testing.T) {
	t.Parallel()
	s, mr := newRedisStore(t)

	require.NoError(t, s.Put(t.Context(), "k", []byte("v")))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(t.Context(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreUnavailable(t *testing.T) {
	t.Parallel()
	s, mr := newRedisStore(t)
	mr.SetError("LOADING redis is loading the dataset")

	err := s.Put(t.Context(), "k", []byte("v"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPersistence))
}
