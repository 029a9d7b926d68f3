package monitor

import (
	"slices"
	"sync"
	"time"

	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

// Renderer receives per-source drawing instructions after each pass.
type Renderer interface {
	Clear(sourceID string)
	DrawFence(sourceID string, r boundary.Rect)
	DrawPose(sourceID string, kps []vision.Keypoint)
}

// Overlay is what a viewer should draw over a source's live picture.
type Overlay struct {
	SourceID  string            `json:"sourceId"`
	Fence     *boundary.Rect    `json:"fence,omitempty"`
	Pose      []vision.Keypoint `json:"pose,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// OverlayStore is a Renderer that keeps the latest overlay per source so
// the API can serve it.
type OverlayStore struct {
	mu       sync.RWMutex
	overlays map[string]Overlay
}

// NewOverlayStore returns an empty store.
func NewOverlayStore() *OverlayStore {
	return &OverlayStore{overlays: make(map[string]Overlay)}
}

func (s *OverlayStore) Clear(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlays[sourceID] = Overlay{SourceID: sourceID, UpdatedAt: time.Now()}
}

func (s *OverlayStore) DrawFence(sourceID string, r boundary.Rect) {
	s.update(sourceID, func(o *Overlay) { o.Fence = &r })
}

func (s *OverlayStore) DrawPose(sourceID string, kps []vision.Keypoint) {
	s.update(sourceID, func(o *Overlay) { o.Pose = slices.Clone(kps) })
}

func (s *OverlayStore) update(sourceID string, fn func(*Overlay)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.overlays[sourceID]
	o.SourceID = sourceID
	fn(&o)
	o.UpdatedAt = time.Now()
	s.overlays[sourceID] = o
}

// Get returns the overlay for sourceID.
func (s *OverlayStore) Get(sourceID string) (Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overlays[sourceID]
	return o, ok
}

// Forget drops a removed source's overlay.
func (s *OverlayStore) Forget(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlays, sourceID)
}

type nopRenderer struct{}

func (nopRenderer) Clear(string)                       {}
func (nopRenderer) DrawFence(string, boundary.Rect)    {}
func (nopRenderer) DrawPose(string, []vision.Keypoint) {}
