// SPDX-License-Identifier: MIT
package validate

import "strings"

// LogLevel is one of the verbosity names accepted in LOG_LEVEL.
type LogLevel string

const (
	LogLevelCritical LogLevel = "CRITICAL"
	LogLevelError    LogLevel = "ERROR"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelNotSet   LogLevel = "NOTSET"
)

// LogLevels lists the accepted levels from least to most verbose.
func LogLevels() []LogLevel {
	return []LogLevel{
		LogLevelCritical,
		LogLevelError,
		LogLevelWarning,
		LogLevelInfo,
		LogLevelDebug,
		LogLevelNotSet,
	}
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelCritical, LogLevelError, LogLevelWarning, LogLevelInfo, LogLevelDebug, LogLevelNotSet:
		return true
	default:
		return false
	}
}

// String returns the string representation
func (l LogLevel) String() string {
	return string(l)
}

// ParseLogLevel parses a string into a LogLevel. Names are case-sensitive.
func ParseLogLevel(s string) (LogLevel, error) {
	level := LogLevel(s)
	if !level.IsValid() {
		return "", &Error{
			Field:   ErrInvalidLogLevel.Field,
			Value:   s,
			Message: ErrInvalidLogLevel.Message,
		}
	}
	return level, nil
}

// Common validation errors
var (
	ErrInvalidLogLevel = &Error{
		Field:   "LOG_LEVEL",
		Message: "invalid log level (must be: " + strings.Join(levelNames(), ", ") + ")",
	}
)

func levelNames() []string {
	levels := LogLevels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return names
}
