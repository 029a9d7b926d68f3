package fence

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the fence store logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("fence")
}
