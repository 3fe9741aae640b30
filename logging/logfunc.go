package logging

import (
	"fmt"
	"log"
	"strings"

	"catalog_tracker/models"
)

// LogFunc is the reporter handed to each component instead of a global logger
type LogFunc func(level models.LogLevel, source, message string)

// NoOp does nothing (default for tests)
var NoOp LogFunc = func(level models.LogLevel, source, message string) {}

// Std writes through the standard logger
var Std LogFunc = func(level models.LogLevel, source, message string) {
	log.Output(2, fmt.Sprintf("[%s] %s: %s", level, source, message))
}

var levelRank = map[models.LogLevel]int{
	models.LogLevelInfo:  0,
	models.LogLevelWarn:  1,
	models.LogLevelError: 2,
}

// ParseLevel maps LOG_LEVEL values onto a level; unknown values mean info
func ParseLevel(s string) models.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return models.LogLevelWarn
	case "error":
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}

// Filter drops messages below min
func Filter(min models.LogLevel, next LogFunc) LogFunc {
	threshold := levelRank[min]
	return func(level models.LogLevel, source, message string) {
		if levelRank[level] < threshold {
			return
		}
		next(level, source, message)
	}
}

// Tee fans a message out to every non-nil sink
func Tee(sinks ...LogFunc) LogFunc {
	return func(level models.LogLevel, source, message string) {
		for _, sink := range sinks {
			if sink != nil {
				sink(level, source, message)
			}
		}
	}
}
