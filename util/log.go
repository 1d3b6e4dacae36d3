/* Copyright (c) 2017-2026 Gregor Riepl
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package util

import (
	"sync"
	"time"
)

const (
	// timeFormat configures the format for time strings
	timeFormat string = time.RFC3339
	//
	// KeyModule is the standard key for a user-defined module name
	KeyModule string = "module"
	// KeyTime is the standard key for the time stamp when the log entry was generated
	KeyTime string = "time"
	// KeyEvent is the standard key for the event type of a log line
	KeyEvent string = "event"
	// KeyError is the standard key for an error identifier
	KeyError string = "error"
	// KeyMessage is the standard key for a human-readable message
	KeyMessage string = "message"
)

var (
	globalLock           sync.RWMutex
	globalStandardLogger Logger = &ConsoleLogger{}
)

// Dict is a generic string:any dictionary type, for more convenience
// when creating structured logs.
type Dict map[string]interface{}

// Logger is an interface for loggers that can generate structured logs.
//
// Log lines should carry the module that generated them and an event
// identifier, so they can be filtered easily.
// See ModuleLogger for an easy way to do this.
//
// Examples:
// { "module": "streaming", "event": "list", "library": "/videos", "count": 12 }
// { "module": "streaming", "event": "done", "name": "intro.mp4", "bytes": 12087832, "duration": 61 }
// { "module": "dashboard", "event": "error", "error": "fetch", "message": "connection refused" }
type Logger interface {
	// Logd writes one or multiple data structures to the log represented by this logger.
	// Each argument generates one line in the log.
	//
	// Example usage:
	//   logger.Logd(Dict{ "key": "value" }, Dict{ "key": "value2" })
	Logd(lines ...Dict)
	// Logkv is a convenience function that sends a single log line to the logger.
	// The arguments are alternating key -> value pairs that are assembled into a dictionary.
	//
	//   logger.Logkv("key", "value", "key2", 10)
	Logkv(keyValues ...interface{})
}

// LogFunnel is a simple helper for converting variadic key-value pairs into a dictionary
func LogFunnel(keyValues []interface{}) Dict {
	d := make(Dict)
	// we need an even number of additional args
	for i := 0; i+1 < len(keyValues); i += 2 {
		k, ok := keyValues[i].(string)
		// ignore if the key is not a string
		if ok {
			d[k] = keyValues[i+1]
		}
	}
	return d
}

// globalLogger forwards to whatever is currently installed as the global standard logger.
// Module loggers are created at package init time, before main had a chance
// to pick a backend, so the lookup must happen on every call.
type globalLogger struct{}

func (globalLogger) Logd(lines ...Dict) {
	globalLock.RLock()
	backend := globalStandardLogger
	globalLock.RUnlock()
	backend.Logd(lines...)
}

func (l globalLogger) Logkv(keyValues ...interface{}) {
	l.Logd(LogFunnel(keyValues))
}

// NewGlobalModuleLogger creates a logger for the current package and
// connects it to the global standard logger.
//
// The default output for the standard logger is a JSON log on stdout,
// but this can be changed by calling SetGlobalStandardLogger.
//
// An optional dictionary argument allows specifying additional keys that are
// added to every log line. Can be nil if you don't need it.
func NewGlobalModuleLogger(module string, dict Dict) Logger {
	more := make(Dict)
	for k, v := range dict {
		more[k] = v
	}
	more[KeyModule] = module
	return &ModuleLogger{
		Logger:       globalLogger{},
		Defaults:     more,
		AddTimestamp: true,
	}
}

// SetGlobalStandardLogger assigns a new backing logger to the global standard logger.
//
// A reference to the old logger is returned.
func SetGlobalStandardLogger(logger Logger) Logger {
	globalLock.Lock()
	defer globalLock.Unlock()
	old := globalStandardLogger
	globalStandardLogger = logger
	return old
}

// ModuleLogger encapsulates default values for a structured log.
//
// If AddTimestamp is true, each log line will contain the key 'time' with the
// current time in RFC 3339 format (ex.: 2006-01-02T15:04:05Z07:00).
//
// The keys in the Defaults dictionary will always be added.
type ModuleLogger struct {
	// Logger is the backing logger to send log lines to.
	Logger Logger
	// Defaults is a dictionary containing default keys.
	// The key 'module' with a unique name for the module sending the log
	// is highly recommended.
	Defaults Dict
	// AddTimestamp determines if a "time" value with the current time in RFC 3339 format
	// is added to the dictionary before it is passed to the underlying logger.
	AddTimestamp bool
}

// Logd adds predefined values to each log line and writes it to the encapsulated log.
func (logger *ModuleLogger) Logd(lines ...Dict) {
	proclines := make([]Dict, len(lines))
	for i, line := range lines {
		processed := make(Dict, len(logger.Defaults)+len(line)+1)
		for key, value := range logger.Defaults {
			processed[key] = value
		}
		if logger.AddTimestamp {
			processed[KeyTime] = time.Now().Format(timeFormat)
		}
		for key, value := range line {
			processed[key] = value
		}
		proclines[i] = processed
	}
	logger.Logger.Logd(proclines...)
}

func (logger *ModuleLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}

// With returns a new module logger that shares the backend and defaults of
// this one and adds the given key-value pairs to every line.
func (logger *ModuleLogger) With(keyValues ...interface{}) *ModuleLogger {
	more := make(Dict, len(logger.Defaults))
	for k, v := range logger.Defaults {
		more[k] = v
	}
	for k, v := range LogFunnel(keyValues) {
		more[k] = v
	}
	return &ModuleLogger{
		Logger:       logger.Logger,
		Defaults:     more,
		AddTimestamp: logger.AddTimestamp,
	}
}

// DummyLogger is a logger placeholder that doesn't actually log anything.
type DummyLogger struct{}

func (*DummyLogger) Logd(lines ...Dict)             {}
func (*DummyLogger) Logkv(keyValues ...interface{}) {}

// MultiLogger logs to several backend loggers at once.
type MultiLogger []Logger

// Logd writes the same log lines to all backing loggers.
func (logger MultiLogger) Logd(lines ...Dict) {
	for _, backer := range logger {
		backer.Logd(lines...)
	}
}

func (logger MultiLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}
