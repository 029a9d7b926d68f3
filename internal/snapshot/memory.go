package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// MemoryStore keeps snapshots in process. When a file is configured the
// whole cache is written to it after each Put and read back on creation.
type MemoryStore struct {
	cache *cache.Cache
	file  string
	mu    sync.Mutex // serializes file writes
}

// NewMemoryStore creates a store whose entries expire after ttl. A zero ttl
// never expires. An unreadable file is logged and ignored.
func NewMemoryStore(ttl time.Duration, file string) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	// expired entries are filtered on read, so no janitor goroutine is started
	s := &MemoryStore{
		cache: cache.New(ttl, 0),
		file:  file,
	}

	if file != "" {
		if err := s.cache.LoadFile(file); err != nil && !os.IsNotExist(err) {
			GetLogger().Warn("failed to load session file, starting empty",
				logger.String("path", file),
				logger.Error(err))
		}
	}
	return s
}

// Put stores a copy of data under key.
func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.cache.SetDefault(key, append([]byte(nil), data...))
	if s.file == "" {
		return nil
	}
	return s.save()
}

// Get returns a copy of the blob stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, false, errors.Newf("unexpected value type %T for key %s", v, key).
			Category(errors.CategoryState).
			Build()
	}
	return append([]byte(nil), data...), true, nil
}

func (s *MemoryStore) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", s.file).
			Build()
	}
	if err := s.cache.SaveFile(s.file); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", s.file).
			Build()
	}
	return nil
}
