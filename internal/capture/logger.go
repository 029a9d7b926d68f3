package capture

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the capture logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("capture")
}
