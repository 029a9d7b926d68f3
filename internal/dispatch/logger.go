package dispatch

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the dispatcher logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("dispatch")
}
