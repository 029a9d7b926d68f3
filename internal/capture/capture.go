// Package capture grabs single JPEG frames from video devices and streams.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/logger"
)

// maxStderr bounds the ffmpeg diagnostics kept for error messages.
const maxStderr = 2048

// Frame is one captured image.
type Frame struct {
	SourceID   string
	Width      int
	Height     int
	JPEG       []byte
	Base64     string // set when text encoding was requested
	CapturedAt time.Time
}

// Source captures frames by source id.
type Source interface {
	CaptureFrame(ctx context.Context, sourceID string, width, height int, encodeAsText bool) (Frame, error)
}

// Config configures the ffmpeg grabber.
type Config struct {
	FfmpegPath    string
	Timeout       time.Duration // per frame; zero means only ctx bounds it
	InputFormat   string        // used for device paths, e.g. v4l2
	RTSPTransport string        // tcp or udp
}

// FFmpegSource grabs frames by running ffmpeg once per frame.
type FFmpegSource struct {
	cfg Config
}

// NewFFmpegSource creates a grabber.
func NewFFmpegSource(cfg Config) *FFmpegSource {
	if cfg.FfmpegPath == "" {
		cfg.FfmpegPath = "ffmpeg"
	}
	return &FFmpegSource{cfg: cfg}
}

// CaptureFrame grabs one frame scaled to width x height.
func (s *FFmpegSource) CaptureFrame(ctx context.Context, sourceID string, width, height int, encodeAsText bool) (Frame, error) {
	if sourceID == "" {
		return Frame{}, captureError(errors.NewStd("empty source id"), sourceID)
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, s.cfg.FfmpegPath, s.args(sourceID, width, height)...) //nolint:gosec // configured binary, source id is an argument
	var stdout bytes.Buffer
	stderr := &boundedBuffer{limit: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return Frame{}, captureError(fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String())), sourceID)
	}
	if stdout.Len() == 0 {
		return Frame{}, captureError(errors.NewStd("ffmpeg produced no image"), sourceID)
	}

	frame := Frame{
		SourceID:   sourceID,
		Width:      width,
		Height:     height,
		JPEG:       stdout.Bytes(),
		CapturedAt: time.Now(),
	}
	if encodeAsText {
		frame.Base64 = base64.StdEncoding.EncodeToString(frame.JPEG)
	}

	GetLogger().Trace("frame captured",
		logger.String("source_id", sourceID),
		logger.Int("bytes", len(frame.JPEG)),
		logger.Duration("elapsed", time.Since(start)))
	return frame, nil
}

// args builds the ffmpeg command line. Device paths get the configured input
// format; RTSP URLs get the transport option.
func (s *FFmpegSource) args(sourceID string, width, height int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch {
	case strings.HasPrefix(sourceID, "/dev/") && s.cfg.InputFormat != "":
		args = append(args, "-f", s.cfg.InputFormat)
	case strings.HasPrefix(sourceID, "rtsp://") || strings.HasPrefix(sourceID, "rtsps://"):
		if s.cfg.RTSPTransport != "" {
			args = append(args, "-rtsp_transport", s.cfg.RTSPTransport)
		}
	}

	args = append(args, "-i", sourceID, "-frames:v", "1")
	if width > 0 && height > 0 {
		args = append(args, "-vf", "scale="+strconv.Itoa(width)+":"+strconv.Itoa(height))
	}
	return append(args, "-f", "image2", "-c:v", "mjpeg", "-q:v", "3", "pipe:1")
}

func captureError(err error, sourceID string) error {
	return errors.New(err).
		Category(errors.CategoryCapture).
		Context("source_id", sourceID).
		Build()
}

// boundedBuffer keeps the first limit bytes written to it.
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
