package conf

import "github.com/fraktlabs/fencewatch/internal/logger"

// GetLogger returns the configuration package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
