package datastore

import (
	"time"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/fence"
)

// FenceRow is the fences table.
type FenceRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:255;not null"`
	SourceID  string `gorm:"index;size:255"`
	X0        float64
	Y0        float64
	X1        float64
	Y1        float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the gorm default.
func (FenceRow) TableName() string { return "fences" }

func fenceRow(f fence.Fence) FenceRow {
	b := f.Boundary
	return FenceRow{Name: f.Name, SourceID: f.SourceID, X0: b.X0, Y0: b.Y0, X1: b.X1, Y1: b.Y1}
}

func (r FenceRow) fence() fence.Fence {
	return fence.Fence{
		Name:     r.Name,
		SourceID: r.SourceID,
		Boundary: boundary.Rect{X0: r.X0, Y0: r.Y0, X1: r.X1, Y1: r.Y1},
	}
}

// AlertRow is the alerts table.
type AlertRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;size:255;not null"`
	Type      string `gorm:"size:32;not null"`
	ChannelID string `gorm:"size:512"`
	Recipient string `gorm:"size:1024"`
	Subject   string `gorm:"size:512"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the gorm default.
func (AlertRow) TableName() string { return "alerts" }

func alertRow(a alert.Alert) AlertRow {
	return AlertRow{
		Name:      a.Name,
		Type:      string(a.Type),
		ChannelID: a.ChannelID,
		Recipient: a.Recipient,
		Subject:   a.Subject,
		Content:   a.ContentTemplate,
	}
}

func (r AlertRow) alert() alert.Alert {
	return alert.FromRecord(r.Name, alert.Record{
		Name:      r.Name,
		Type:      r.Type,
		ID:        r.ChannelID,
		Recipient: r.Recipient,
		Subject:   r.Subject,
		Content:   r.Content,
	})
}
