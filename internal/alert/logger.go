package alert

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the alert catalog logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("alert")
}
