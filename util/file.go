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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"time"
)

const (
	// signalQueueLength specifies the maximum number of unhandled control signals
	signalQueueLength int = 100
	// logQueueLength specifies the maximum number of unwritten log messages
	logQueueLength int = 100
	// shutdownSignal is a signal identifier for a "stop logging" notification.
	// Distinct from UserSignal.
	shutdownSignal internalSignal = internalSignal("SDN")
)

type internalSignal string

func (s internalSignal) Signal() {}
func (s internalSignal) String() string {
	return string(s)
}

// FileLoggerStats contains the line counters of a FileLogger.
type FileLoggerStats struct {
	// Lines is the number of lines written
	Lines uint64
	// Drops is the number of lines dropped because the queue was full
	Drops uint64
	// Errors is the number of lines that could not be encoded or written
	Errors uint64
}

// A FileLogger writes JSON-formatted log lines to a file.
//
// Log lines are prefixed with a timestamp in RFC3339 format, like this:
// [2006-01-02T15:04:05Z07:00] <JSON>
//
// The file is reopened when the process receives UserSignal, for log rotation.
type FileLogger struct {
	// notification channel, also used for system signals
	signals chan os.Signal
	// log file name
	name string
	// log file handle, only touched by the handler goroutine after creation
	log io.WriteCloser
	// message queue
	messages chan Dict
	// closed when the handler goroutine has terminated
	done chan struct{}
	lines  uint64
	drops  uint64
	errors uint64
}

// NewFileLogger creates a new FileLogger and optionally installs a user signal handler;
// pass sigusr=true for that purpose.
//
// Signals are only fully supported on POSIX systems. On Microsoft Windows, the
// signal handler is installed, but it is never notified.
func NewFileLogger(logfile string, sigusr bool) (*FileLogger, error) {
	logger := &FileLogger{
		signals:  make(chan os.Signal, signalQueueLength),
		name:     logfile,
		messages: make(chan Dict, logQueueLength),
		done:     make(chan struct{}),
	}

	if err := logger.reopenLog(); err != nil {
		return nil, err
	}

	if sigusr {
		RegisterUserSignalHandler(logger.signals)
	}
	go logger.handle()

	return logger, nil
}

// Logd queues a series of log lines. Lines are dropped if the queue is full.
func (logger *FileLogger) Logd(lines ...Dict) {
	for _, line := range lines {
		select {
		case logger.messages <- line:
		default:
			fmt.Printf("{\"event\":\"error\",\"message\":\"Log queue is full, message dropped\",\"line\":\"%v\"}\n", line)
			atomic.AddUint64(&logger.drops, 1)
		}
	}
}

func (logger *FileLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}

// Stats returns the current line counters.
func (logger *FileLogger) Stats() FileLoggerStats {
	return FileLoggerStats{
		Lines:  atomic.LoadUint64(&logger.lines),
		Drops:  atomic.LoadUint64(&logger.drops),
		Errors: atomic.LoadUint64(&logger.errors),
	}
}

// Close flushes all queued lines, closes the log file and stops the signal handler.
// Blocks until the log is closed.
func (logger *FileLogger) Close() {
	logger.signals <- shutdownSignal
	<-logger.done
}

func (logger *FileLogger) writeLog(line Dict) {
	if logger.log == nil {
		atomic.AddUint64(&logger.errors, 1)
		return
	}
	data, err := json.Marshal(line)
	if err != nil {
		fmt.Printf("{\"event\":\"error\",\"message\":\"Cannot encode log line\",\"line\":\"%v\"}\n", line)
		atomic.AddUint64(&logger.errors, 1)
		return
	}
	if _, err := fmt.Fprintf(logger.log, "[%s] %s\n", time.Now().Format(timeFormat), data); err != nil {
		atomic.AddUint64(&logger.errors, 1)
		return
	}
	atomic.AddUint64(&logger.lines, 1)
}

// reopenLog (re-)opens the log file in append mode.
func (logger *FileLogger) reopenLog() error {
	if logger.log != nil {
		err := logger.log.Close()
		logger.log = nil
		if err != nil {
			return err
		}
	}
	fd, err := os.OpenFile(logger.name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, os.FileMode(0666))
	if err != nil {
		return err
	}
	logger.log = fd
	return nil
}

// drain writes out all lines that are still in the queue.
func (logger *FileLogger) drain() {
	for {
		select {
		case line := <-logger.messages:
			logger.writeLog(line)
		default:
			return
		}
	}
}

// handle processes the log queue and the control signals.
func (logger *FileLogger) handle() {
	defer close(logger.done)
	for {
		select {
		case sig := <-logger.signals:
			switch sig {
			case UserSignal:
				logger.drain()
				if err := logger.reopenLog(); err != nil {
					fmt.Printf("{\"event\":\"error\",\"message\":\"Error reopening log\",\"error\":\"reopen\",\"errmsg\":%q}\n", err.Error())
				}
			case shutdownSignal:
				signal.Stop(logger.signals)
				logger.drain()
				if logger.log != nil {
					logger.log.Close()
					logger.log = nil
				}
				return
			}
		case line := <-logger.messages:
			logger.writeLog(line)
		}
	}
}
