package logger

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fraktlabs/fencewatch/internal/errors"
)

const logDirPermissions = 0o750

// newRotatingWriter opens the main log file behind a lumberjack rotator.
// Rotation happens on size; MaxAge and MaxBackups prune old files.
func newRotatingWriter(fo *FileOutput) (io.WriteCloser, error) {
	if dir := filepath.Dir(fo.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, logDirPermissions); err != nil {
			return nil, errors.New(err).
				Component("logger").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	return &lumberjack.Logger{
		Filename:   fo.Path,
		MaxSize:    fo.MaxSize,
		MaxAge:     fo.MaxAge,
		MaxBackups: fo.MaxBackups,
		Compress:   fo.Compress,
		LocalTime:  true,
	}, nil
}

// Rotate forces the main log file to roll over. Wired to SIGHUP by the serve command.
func (cl *CentralLogger) Rotate() error {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	lj, ok := cl.fileWriter.(*lumberjack.Logger)
	if !ok {
		return nil
	}
	return lj.Rotate()
}
