// Package monitor runs the fence-violation pipeline: capture a frame from
// every monitored source, estimate poses, test them against each source's
// fence and raise the configured alert on a violation.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fraktlabs/fencewatch/internal/alert"
	"github.com/fraktlabs/fencewatch/internal/boundary"
	"github.com/fraktlabs/fencewatch/internal/capture"
	"github.com/fraktlabs/fencewatch/internal/collision"
	"github.com/fraktlabs/fencewatch/internal/dispatch"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/events"
	"github.com/fraktlabs/fencewatch/internal/fence"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/source"
	"github.com/fraktlabs/fencewatch/internal/vision"
)

// Default scheduling values
const (
	DefaultIdleInterval  = 100 * time.Millisecond
	DefaultFrameInterval = 16 * time.Millisecond
	warnInterval         = 10 * time.Second
)

var errAlreadyRunning = errors.NewStd("monitor is already running")

// State is what the scheduler is doing right now.
type State int32

const (
	StateIdle State = iota
	StateRunningPass
)

func (s State) String() string {
	if s == StateRunningPass {
		return "running"
	}
	return "idle"
}

// Size is a capture resolution.
type Size struct {
	Width  int
	Height int
}

// Sources is the part of the source registry the scheduler reads.
type Sources interface {
	List(filters ...source.Filter) []source.Source
	Get(id string) (source.Source, error)
}

// Fences resolves fence names.
type Fences interface {
	FindByName(name string) (fence.Fence, bool)
}

// Alerts resolves alert names.
type Alerts interface {
	Get(name string) (alert.Alert, error)
}

// Dispatcher delivers an alert. It must not block for the delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, a alert.Alert, fenceName string, evidence dispatch.Evidence)
}

// Recorder receives pipeline metrics.
type Recorder interface {
	PassCompleted(sources int, d time.Duration)
	CaptureFailed(source string)
	InferenceFailed(source string)
	ViolationDetected(fence string)
}

// Config wires the scheduler's collaborators.
type Config struct {
	Sources    Sources
	Fences     Fences
	Alerts     Alerts
	Capture    capture.Source
	Pose       vision.PoseEstimator
	Dispatcher Dispatcher
	Renderer   Renderer         // optional
	Publisher  events.Publisher // optional
	Recorder   Recorder         // optional

	IdleInterval  time.Duration
	FrameInterval time.Duration
	CaptureSize   Size
	EvidenceSize  Size
	DefaultAlert  string // used when a source has no alert assigned
}

// Detection is one source's outcome in a pass.
type Detection struct {
	SourceID  string            `json:"sourceId"`
	FenceName string            `json:"fence,omitempty"`
	Keypoints []vision.Keypoint `json:"keypoints"`
	Violated  bool              `json:"violated"`
	Offending *vision.Keypoint  `json:"offending,omitempty"`
	AlertName string            `json:"alert,omitempty"`
}

// PassReport summarizes a pass.
type PassReport struct {
	ID         string        `json:"id"`
	Sources    int           `json:"sources"`
	Captured   int           `json:"captured"`
	Detections []Detection   `json:"detections"`
	Duration   time.Duration `json:"duration"`
}

// Violations counts the violating detections.
func (r PassReport) Violations() int {
	n := 0
	for _, d := range r.Detections {
		if d.Violated {
			n++
		}
	}
	return n
}

// Monitor is the pipeline scheduler. Passes run strictly one at a time.
type Monitor struct {
	cfg     Config
	state   atomic.Int32
	passes  atomic.Uint64
	running atomic.Bool

	warnMu sync.Mutex
	warns  map[string]*rate.Sometimes
}

// New creates a Monitor, filling unset intervals and sizes with defaults.
func New(cfg Config) *Monitor {
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.CaptureSize.Width <= 0 || cfg.CaptureSize.Height <= 0 {
		cfg.CaptureSize = Size{Width: 640, Height: 480}
	}
	if cfg.EvidenceSize.Width <= 0 || cfg.EvidenceSize.Height <= 0 {
		cfg.EvidenceSize = Size{Width: 1280, Height: 720}
	}
	if cfg.Renderer == nil {
		cfg.Renderer = nopRenderer{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.Discard
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	return &Monitor{cfg: cfg, warns: make(map[string]*rate.Sometimes)}
}

// State reports whether a pass is in progress.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Passes returns the number of completed passes.
func (m *Monitor) Passes() uint64 {
	return m.passes.Load()
}

// Run loops until ctx is cancelled. While no source is monitored it polls
// every IdleInterval without touching capture or inference. A pass that is
// in progress when ctx is cancelled finishes first.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer m.running.Store(false)

	log := GetLogger()
	log.Info("monitor started",
		logger.Duration("idle_interval", m.cfg.IdleInterval),
		logger.Duration("frame_interval", m.cfg.FrameInterval))
	defer func() {
		log.Info("monitor stopped", logger.Int64("passes", int64(m.Passes())))
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if len(m.cfg.Sources.List(source.Monitoring())) == 0 {
			if !sleep(ctx, m.cfg.IdleInterval) {
				return nil
			}
			continue
		}
		m.RunPass(ctx)
		if !sleep(ctx, m.cfg.FrameInterval) {
			return nil
		}
	}
}

// RunPass executes one capture, inference and react cycle over the sources
// monitored at the moment it starts.
func (m *Monitor) RunPass(ctx context.Context) PassReport {
	start := time.Now()
	m.state.Store(int32(StateRunningPass))
	defer m.state.Store(int32(StateIdle))

	report := PassReport{ID: uuid.NewString()}
	log := GetLogger().With(logger.String("pass_id", report.ID))

	monitored := m.cfg.Sources.List(source.Monitoring())
	report.Sources = len(monitored)

	frames := m.captureAll(ctx, monitored, log)
	detections := m.inferAll(ctx, monitored, frames, log)
	for _, f := range frames {
		if f != nil {
			report.Captured++
		}
	}
	report.Detections = m.react(ctx, report.ID, monitored, detections, log)

	report.Duration = time.Since(start)
	m.passes.Add(1)
	m.cfg.Recorder.PassCompleted(report.Sources, report.Duration)
	log.Trace("pass complete",
		logger.Int("sources", report.Sources),
		logger.Int("captured", report.Captured),
		logger.Int("violations", report.Violations()),
		logger.Duration("elapsed", report.Duration))
	return report
}

// captureAll grabs one frame per source concurrently. Barrier A.
func (m *Monitor) captureAll(ctx context.Context, sources []source.Source, log logger.Logger) []*capture.Frame {
	frames := make([]*capture.Frame, len(sources))
	var g errgroup.Group
	size := m.cfg.CaptureSize
	for i, src := range sources {
		g.Go(func() error {
			frame, err := m.cfg.Capture.CaptureFrame(ctx, src.ID, size.Width, size.Height, false)
			if err != nil {
				m.cfg.Recorder.CaptureFailed(src.ID)
				m.warn(src.ID, "capture", func() {
					log.Warn("frame capture failed", logger.String("source_id", src.ID), logger.Error(err))
				})
				return nil
			}
			frames[i] = &frame
			return nil
		})
	}
	_ = g.Wait()
	return frames
}

// inferAll runs pose estimation on every captured frame concurrently.
// Barrier B. Only the first detected person is kept.
func (m *Monitor) inferAll(ctx context.Context, sources []source.Source, frames []*capture.Frame, log logger.Logger) []*vision.Detection {
	detections := make([]*vision.Detection, len(frames))
	var g errgroup.Group
	for i, frame := range frames {
		if frame == nil {
			continue
		}
		id := sources[i].ID
		g.Go(func() error {
			dets, err := m.cfg.Pose.Pose(ctx, frame.JPEG)
			if err != nil {
				m.cfg.Recorder.InferenceFailed(id)
				m.warn(id, "pose", func() {
					log.Warn("pose inference failed", logger.String("source_id", id), logger.Error(err))
				})
				return nil
			}
			if len(dets) > 0 {
				detections[i] = &dets[0]
			}
			return nil
		})
	}
	_ = g.Wait()
	return detections
}

// react clears every overlay, then tests each detection against the fence
// currently assigned to its source.
func (m *Monitor) react(ctx context.Context, passID string, sources []source.Source, detections []*vision.Detection, log logger.Logger) []Detection {
	for _, s := range m.cfg.Sources.List() {
		m.cfg.Renderer.Clear(s.ID)
	}

	var out []Detection
	for i, det := range detections {
		if det == nil {
			continue
		}
		// re-read: the source may have been edited or removed mid-pass
		src, err := m.cfg.Sources.Get(sources[i].ID)
		if err != nil {
			continue
		}

		result := Detection{SourceID: src.ID, Keypoints: det.Keypoints}
		var rect *boundary.Rect
		if src.FenceName != "" {
			if f, ok := m.cfg.Fences.FindByName(src.FenceName); ok {
				r := f.Boundary
				rect = &r
				result.FenceName = f.Name
				m.cfg.Renderer.DrawFence(src.ID, r)
			}
		}
		m.cfg.Renderer.DrawPose(src.ID, det.Keypoints)

		if collision.RaisedHand(det.Keypoints) {
			log.Debug("raised hand", logger.String("source_id", src.ID))
		}

		hit := collision.Detect(rect, det.Keypoints)
		if hit.Violated {
			offending := hit.Offending
			result.Violated = true
			result.Offending = &offending
			result.AlertName = m.alertName(src)
			m.violation(ctx, passID, src, result, log)
		}
		out = append(out, result)
	}
	return out
}

func (m *Monitor) alertName(src source.Source) string {
	if src.AlertName != "" {
		return src.AlertName
	}
	return m.cfg.DefaultAlert
}

// violation captures evidence, publishes the event and dispatches the alert.
func (m *Monitor) violation(ctx context.Context, passID string, src source.Source, d Detection, log logger.Logger) {
	m.cfg.Recorder.ViolationDetected(d.FenceName)
	log = log.With(logger.String("source_id", src.ID), logger.String("fence", d.FenceName))
	log.Info("fence violation",
		logger.String("keypoint", d.Offending.Name),
		logger.Float64("x", d.Offending.X),
		logger.Float64("y", d.Offending.Y))

	var evidence string
	size := m.cfg.EvidenceSize
	frame, err := m.cfg.Capture.CaptureFrame(ctx, src.ID, size.Width, size.Height, true)
	if err != nil {
		log.Warn("evidence capture failed, alerting without attachment", logger.Error(err))
	} else {
		evidence = frame.Base64
	}

	m.cfg.Publisher.Publish(events.New(events.TypeViolationDetected, events.Violation{
		SourceID:   src.ID,
		SourceName: src.Name,
		FenceName:  d.FenceName,
		AlertName:  d.AlertName,
		Point:      *d.Offending,
		Evidence:   evidence,
		PassID:     passID,
	}))

	if d.AlertName == "" {
		return
	}
	a, err := m.cfg.Alerts.Get(d.AlertName)
	if err != nil {
		log.Warn("alert not found", logger.String("alert", d.AlertName), logger.Error(err))
		return
	}
	m.cfg.Dispatcher.Dispatch(ctx, a, d.FenceName, dispatch.Evidence{Base64: evidence})
}

// warn runs fn at most once per warnInterval for each source and kind.
func (m *Monitor) warn(sourceID, kind string, fn func()) {
	key := kind + "|" + sourceID
	m.warnMu.Lock()
	s, ok := m.warns[key]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: warnInterval}
		m.warns[key] = s
	}
	m.warnMu.Unlock()
	s.Do(fn)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type nopRecorder struct{}

func (nopRecorder) PassCompleted(int, time.Duration) {}
func (nopRecorder) CaptureFailed(string)             {}
func (nopRecorder) InferenceFailed(string)           {}
func (nopRecorder) ViolationDetected(string)         {}
