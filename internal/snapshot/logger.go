package snapshot

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the snapshot store logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("snapshot")
}
