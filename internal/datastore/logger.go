package datastore

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the datastore logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
