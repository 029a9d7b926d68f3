// Package fence stores named safety rectangles and keeps them in sync with
// an authoritative persistence backend.
package fence

import (
	"context"
	"fmt"

	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/errors"
)

// ErrFenceNotFound is returned when no fence has the requested name.
var ErrFenceNotFound = errors.NewStd("fence not found")

// Fence is a named boundary assigned to a source.
type Fence struct {
	Name     string        `json:"name"`
	SourceID string        `json:"sourceId"`
	Boundary boundary.Rect `json:"boundary"`
}

// ValidationError names the offending field of a rejected fence.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the name and the boundary.
func (f Fence) Validate() error {
	var ve *ValidationError
	switch {
	case f.Name == "":
		ve = &ValidationError{Field: "name", Message: "is required"}
	case !f.Boundary.Valid():
		ve = &ValidationError{Field: "boundary", Message: "must satisfy 0 <= x0 <= x1 <= 1 and 0 <= y0 <= y1 <= 1"}
	default:
		return nil
	}
	return errors.New(ve).
		Category(errors.CategoryValidation).
		Context("field", ve.Field).
		Context("fence", f.Name).
		Build()
}

// Persistence is the authoritative fence storage. Every call returns the
// complete mapping after the operation.
type Persistence interface {
	Save(ctx context.Context, name string, f Fence) (map[string]Fence, error)
	Remove(ctx context.Context, name string) (map[string]Fence, error)
	LoadAll(ctx context.Context) (map[string]Fence, error)
}

// Record is the wire shape used by the persistence API:
// {"name", "id" (source id), "bbox": [x0, y0, x1, y1]}.
type Record struct {
	Name string     `json:"name"`
	ID   string     `json:"id"`
	BBox [4]float64 `json:"bbox"`
}

// ToRecord converts f to its wire shape.
func (f Fence) ToRecord() Record {
	b := f.Boundary
	return Record{Name: f.Name, ID: f.SourceID, BBox: [4]float64{b.X0, b.Y0, b.X1, b.Y1}}
}

// FromRecord converts a wire record. An empty record name takes key.
func FromRecord(key string, r Record) Fence {
	name := r.Name
	if name == "" {
		name = key
	}
	return Fence{
		Name:     name,
		SourceID: r.ID,
		Boundary: boundary.Rect{X0: r.BBox[0], Y0: r.BBox[1], X1: r.BBox[2], Y1: r.BBox[3]},
	}
}
