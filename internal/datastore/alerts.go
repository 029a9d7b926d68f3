package datastore

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/fraktlabs/fencewatch/internal/alert"
)

// AlertRepository implements alert.Persistence on the alerts table.
type AlertRepository struct {
	store *Store
}

// Save inserts or replaces the alert called name and returns every alert.
func (r *AlertRepository) Save(ctx context.Context, name string, a alert.Alert) (map[string]alert.Alert, error) {
	a.Name = name
	row := alertRow(a)
	err := r.store.track("alert_save", func() error {
		return r.store.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "channel_id", "recipient", "subject", "content", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return nil, dbError(err, "alert_save", name)
	}
	return r.LoadAll(ctx)
}

// Remove deletes the alert called name, if any, and returns the rest.
func (r *AlertRepository) Remove(ctx context.Context, name string) (map[string]alert.Alert, error) {
	err := r.store.track("alert_remove", func() error {
		return r.store.DB.WithContext(ctx).Where("name = ?", name).Delete(&AlertRow{}).Error
	})
	if err != nil {
		return nil, dbError(err, "alert_remove", name)
	}
	return r.LoadAll(ctx)
}

// LoadAll returns every stored alert keyed by name.
func (r *AlertRepository) LoadAll(ctx context.Context) (map[string]alert.Alert, error) {
	var rows []AlertRow
	err := r.store.track("alert_load", func() error {
		return r.store.DB.WithContext(ctx).Order("name").Find(&rows).Error
	})
	if err != nil {
		return nil, dbError(err, "alert_load", "")
	}
	out := make(map[string]alert.Alert, len(rows))
	for _, row := range rows {
		out[row.Name] = row.alert()
	}
	return out, nil
}

var _ alert.Persistence = (*AlertRepository)(nil)
