package datastore

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/fraktlabs/fencewatch/internal/fence"
)

// FenceRepository implements fence.Persistence on the fences table.
type FenceRepository struct {
	store *Store
}

// Save inserts or replaces the fence called name and returns every fence.
func (r *FenceRepository) Save(ctx context.Context, name string, f fence.Fence) (map[string]fence.Fence, error) {
	f.Name = name
	row := fenceRow(f)
	err := r.store.track("fence_save", func() error {
		return r.store.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"source_id", "x0", "y0", "x1", "y1", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return nil, dbError(err, "fence_save", name)
	}
	return r.LoadAll(ctx)
}

// Remove deletes the fence called name, if any, and returns the rest.
func (r *FenceRepository) Remove(ctx context.Context, name string) (map[string]fence.Fence, error) {
	err := r.store.track("fence_remove", func() error {
		return r.store.DB.WithContext(ctx).Where("name = ?", name).Delete(&FenceRow{}).Error
	})
	if err != nil {
		return nil, dbError(err, "fence_remove", name)
	}
	return r.LoadAll(ctx)
}

// LoadAll returns every stored fence keyed by name.
func (r *FenceRepository) LoadAll(ctx context.Context) (map[string]fence.Fence, error) {
	var rows []FenceRow
	err := r.store.track("fence_load", func() error {
		return r.store.DB.WithContext(ctx).Order("name").Find(&rows).Error
	})
	if err != nil {
		return nil, dbError(err, "fence_load", "")
	}
	out := make(map[string]fence.Fence, len(rows))
	for _, row := range rows {
		out[row.Name] = row.fence()
	}
	return out, nil
}

var _ fence.Persistence = (*FenceRepository)(nil)
