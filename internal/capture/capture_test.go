package capture

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraktlabs/fencewatch/internal/errors"
)

// fakeFFmpeg writes a shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestArgs(t *testing.T) {
	t.Parallel()
	s := NewFFmpegSource(Config{InputFormat: "v4l2", RTSPTransport: "tcp"})

	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-f", "v4l2", "-i", "/dev/video0",
		"-frames:v", "1", "-vf", "scale=640:480", "-f", "image2", "-c:v", "mjpeg", "-q:v", "3", "pipe:1",
	}, s.args("/dev/video0", 640, 480))

	rtsp := s.args("rtsp://cam/stream", 1280, 720)
	assert.Equal(t, []string{"-hide_banner", "-loglevel", "error", "-rtsp_transport", "tcp", "-i", "rtsp://cam/stream"}, rtsp[:7])

	httpArgs := s.args("http://cam/snapshot.jpg", 0, 0)
	assert.NotContains(t, httpArgs, "-vf")
	assert.NotContains(t, httpArgs, "-rtsp_transport")
}

func TestCaptureFrame(t *testing.T) {
	t.Parallel()
	s := NewFFmpegSource(Config{FfmpegPath: fakeFFmpeg(t, `printf 'JPEGDATA'`)})

	frame, err := s.CaptureFrame(t.Context(), "/dev/video0", 640, 480, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("JPEGDATA"), frame.JPEG)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("JPEGDATA")), frame.Base64)
	assert.Equal(t, 640, frame.Width)
	assert.False(t, frame.CapturedAt.IsZero())

	frame, err = s.CaptureFrame(t.Context(), "/dev/video0", 640, 480, false)
	require.NoError(t, err)
	assert.Empty(t, frame.Base64)
}

func TestCaptureFrameFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
	}{
		{"non-zero exit", `echo "No such device" >&2; exit 1`},
		{"empty output", `exit 0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewFFmpegSource(Config{FfmpegPath: fakeFFmpeg(t, tt.script)})
			_, err := s.CaptureFrame(t.Context(), "/dev/video9", 640, 480, false)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryCapture))
		})
	}
}

func TestCaptureFrameTimeout(t *testing.T) {
	t.Parallel()
	s := NewFFmpegSource(Config{FfmpegPath: fakeFFmpeg(t, `exec sleep 5`), Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := s.CaptureFrame(t.Context(), "rtsp://cam", 640, 480, false)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestBoundedBuffer(t *testing.T) {
	t.Parallel()
	b := &boundedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, _ = b.Write([]byte("gh"))
	assert.Equal(t, "abcd", b.String())
}
