package monitor

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the module logger for the pipeline scheduler
func GetLogger() logger.Logger {
	return logger.Global().Module("monitor")
}
