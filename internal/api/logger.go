package api

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the HTTP server logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("http")
}
