package source

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the source registry logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("source")
}
