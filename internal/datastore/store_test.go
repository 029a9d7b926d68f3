package datastore

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/observability/metrics"
)

func newTestStore(t *testing.T, rec metrics.Recorder) *Store {
	t.Helper()
	s, err := OpenSQLite(":memory:", rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type countingRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (c *countingRecorder) RecordOperation(op, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ops == nil {
		c.ops = map[string]int{}
	}
	c.ops[op+"/"+status]++
}

func (c *countingRecorder) RecordDuration(string, float64) {}
func (c *countingRecorder) RecordError(string, string)     {}

var bed = fence.Fence{Name: "bed-1", SourceID: "cam-1", Boundary: boundary.Rect{X0: 0.1, Y0: 0.1, X1: 0.5, Y1: 0.3}}

func TestFenceRepositorySaveUpsertsByName(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t, nil).Fences()
	ctx := t.Context()

	all, err := repo.Save(ctx, bed.Name, bed)
	require.NoError(t, err)
	assert.Equal(t, map[string]fence.Fence{"bed-1": bed}, all)

	moved := bed
	moved.Boundary = boundary.Rect{X0: 0.2, Y0: 0.2, X1: 0.6, Y1: 0.6}
	all, err = repo.Save(ctx, bed.Name, moved)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, moved.Boundary, all["bed-1"].Boundary)

	door := fence.Fence{Name: "door", SourceID: "cam-2", Boundary: boundary.Rect{X1: 1, Y1: 1}}
	all, err = repo.Save(ctx, "door", door)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFenceRepositoryRemove(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t, nil).Fences()
	ctx := t.Context()

	_, err := repo.Save(ctx, bed.Name, bed)
	require.NoError(t, err)

	all, err := repo.Remove(ctx, "bed-1")
	require.NoError(t, err)
	assert.Empty(t, all)

	all, err = repo.Remove(ctx, "never-existed")
	require.NoError(t, err, "removing an unknown fence is not an error")
	assert.Empty(t, all)
}

func TestFenceStoreOverRepository(t *testing.T) {
	t.Parallel()

	db := newTestStore(t, nil)
	store := fence.NewStore(db.Fences(), events.Discard)
	ctx := t.Context()

	require.NoError(t, store.Upsert(ctx, bed))

	reopened := fence.NewStore(db.Fences(), events.Discard)
	require.NoError(t, reopened.Load(ctx))
	got, ok := reopened.FindByName("bed-1")
	require.True(t, ok)
	assert.Equal(t, bed, got)
}

func TestAlertRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t, nil).Alerts()
	ctx := t.Context()

	a := alert.Alert{
		Name:            "night",
		Type:            alert.TypeMail,
		ChannelID:       "AKfy",
		Recipient:       "a@example.com, b@example.com",
		Subject:         "Fence",
		ContentTemplate: "Someone left [fence]",
	}
	all, err := repo.Save(ctx, a.Name, a)
	require.NoError(t, err)
	assert.Equal(t, a, all["night"])

	all, err = repo.Remove(ctx, "night")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreRecordsMetrics(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	repo := newTestStore(t, rec).Fences()

	_, err := repo.Save(t.Context(), bed.Name, bed)
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.ops["fence_save/success"])
	assert.Equal(t, 1, rec.ops["fence_load/success"])
}

func TestOpenFileDatabasePersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "fencewatch.db")
	settings := &conf.PersistenceSettings{Backend: conf.BackendSQLite, SQLite: conf.SQLiteSettings{Path: path}}

	s, err := Open(settings, nil)
	require.NoError(t, err)
	_, err = s.Fences().Save(t.Context(), bed.Name, bed)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(settings, nil)
	require.NoError(t, err)
	defer s.Close()
	all, err := s.Fences().LoadAll(t.Context())
	require.NoError(t, err)
	assert.Contains(t, all, "bed-1")
}

func TestOpenUnsupportedBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(&conf.PersistenceSettings{Backend: "remote"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
