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

	"github.com/sirupsen/logrus"
)

// ConsoleLogger is a simple logger that prints JSON lines to stdout.
type ConsoleLogger struct{}

// Logd writes log lines to stdout.
//
// Your best bet if you don't want/need a full-blown file logging queue with
// signal-initiated reopening.
func (*ConsoleLogger) Logd(lines ...Dict) {
	encoder := json.NewEncoder(os.Stdout)
	for _, line := range lines {
		err := encoder.Encode(line)
		if err != nil {
			fmt.Printf("{\"event\":\"error\",\"message\":\"Cannot encode log line\",\"line\":\"%v\"}\n", line)
		}
	}
}

func (logger *ConsoleLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}

// TextLogger prints human-readable log lines through logrus.
//
// The message key becomes the log message, the remaining keys become fields.
// Lines with event=error are logged at error level, everything else at info level.
type TextLogger struct {
	backend *logrus.Logger
}

// NewTextLogger creates a text logger writing to out.
// The time key is dropped from each line since logrus adds its own timestamp.
func NewTextLogger(out io.Writer) *TextLogger {
	backend := logrus.New()
	backend.SetOutput(out)
	backend.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: timeFormat,
	})
	return &TextLogger{
		backend: backend,
	}
}

func (logger *TextLogger) Logd(lines ...Dict) {
	for _, line := range lines {
		fields := make(logrus.Fields, len(line))
		var message string
		for k, v := range line {
			switch k {
			case KeyTime:
			case KeyMessage:
				message = fmt.Sprint(v)
			default:
				fields[k] = v
			}
		}
		entry := logger.backend.WithFields(fields)
		if line[KeyEvent] == "error" {
			entry.Error(message)
		} else {
			entry.Info(message)
		}
	}
}

func (logger *TextLogger) Logkv(keyValues ...interface{}) {
	logger.Logd(LogFunnel(keyValues))
}
