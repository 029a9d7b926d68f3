package events

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the event bus logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("events")
}
