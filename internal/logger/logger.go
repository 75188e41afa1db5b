// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps logrus to provide level-based filtering and a choice of JSON or text output.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var defaultLogger = logrus.New()

// Init initializes the default logger with the specified level and format.
func Init(level string, format string) {
	switch strings.ToLower(level) {
	case "debug":
		defaultLogger.SetLevel(logrus.DebugLevel)
	case "info":
		defaultLogger.SetLevel(logrus.InfoLevel)
	case "warn":
		defaultLogger.SetLevel(logrus.WarnLevel)
	case "error":
		defaultLogger.SetLevel(logrus.ErrorLevel)
	default:
		defaultLogger.SetLevel(logrus.InfoLevel)
	}

	if strings.ToLower(format) == "json" {
		defaultLogger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		defaultLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:  true,
			DisableColors:  true,
			DisableSorting: false,
		})
	}
	defaultLogger.SetOutput(os.Stderr)
}

// Debug logs a message at debug level.
func Debug(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Info logs a message at info level.
func Info(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warn logs a message at warn level.
func Warn(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Error logs a message at error level.
func Error(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// Fatal logs a message at fatal level and exits.
func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatalf(format, args...)
}
