package vision

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the vision client logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("vision")
}
