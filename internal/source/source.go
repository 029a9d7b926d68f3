// Package source keeps the ordered list of video sources and their
// monitoring flags, and mirrors it to a session snapshot.
package source

import (
	"github.com/fraktlabs/fencewatch/internal/errors"
)

// SnapshotKey is the snapshot store key holding the registry.
const SnapshotKey = "_src_active"

var (
	// ErrSourceNotFound is returned when no source has the requested id.
	ErrSourceNotFound = errors.NewStd("source not found")
	// ErrDuplicateSource is returned when adding an id that already exists.
	ErrDuplicateSource = errors.NewStd("source already registered")
)

// Source is a capture device or stream. ID is the device path or URL.
type Source struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Monitoring bool   `json:"monitoring"`
	// Hidden sources are not rendered but still run through the pipeline.
	Hidden    bool   `json:"hidden"`
	FenceName string `json:"fenceName,omitempty"`
	AlertName string `json:"alertName,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged; a pointer to an
// empty string clears a reference.
type Patch struct {
	Name       *string `json:"name,omitempty"`
	Monitoring *bool   `json:"monitoring,omitempty"`
	Hidden     *bool   `json:"hidden,omitempty"`
	FenceName  *string `json:"fenceName,omitempty"`
	AlertName  *string `json:"alertName,omitempty"`
}

func (p Patch) apply(s *Source) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Monitoring != nil {
		s.Monitoring = *p.Monitoring
	}
	if p.Hidden != nil {
		s.Hidden = *p.Hidden
	}
	if p.FenceName != nil {
		s.FenceName = *p.FenceName
	}
	if p.AlertName != nil {
		s.AlertName = *p.AlertName
	}
}

// Filter selects sources in List.
type Filter func(Source) bool

// Monitoring keeps sources included in pipeline passes.
func Monitoring() Filter {
	return func(s Source) bool { return s.Monitoring }
}

// Visible keeps sources that are rendered.
func Visible() Filter {
	return func(s Source) bool { return !s.Hidden }
}

// WithFence keeps sources assigned to the named fence.
func WithFence(name string) Filter {
	return func(s Source) bool { return s.FenceName == name }
}

// WithAlert keeps sources assigned to the named alert.
func WithAlert(name string) Filter {
	return func(s Source) bool { return s.AlertName == name }
}
