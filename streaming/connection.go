/* Copyright (c) 2016-2026 Gregor Riepl
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

package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/onitake/videoshelf/library"
	"github.com/onitake/videoshelf/metrics"
	"github.com/onitake/videoshelf/util"
)

const (
	// connectionChunkSize is the amount of video data sent per write
	connectionChunkSize = 64 * 1024
)

// Connection is a single video transfer to a client.
//
// This is meant to be called directly from a ServeHTTP handler.
// No separate thread is created.
type Connection struct {
	// the destination socket
	writer http.ResponseWriter
	// stats receives the number of bytes sent
	stats metrics.Collector
	// logger is a kv logger with the remote address preset
	logger *util.ModuleLogger
}

// NewConnection creates a new connection object.
// To start sending data to a client, call Serve().
//
// clientaddr should point to the remote address of the connecting client
// and will be used for logging.
func NewConnection(destination http.ResponseWriter, clientaddr string) *Connection {
	return &Connection{
		writer: destination,
		stats:  &metrics.DummyCollector{},
		logger: &util.ModuleLogger{
			Logger: logger,
			Defaults: util.Dict{
				"remote": clientaddr,
			},
		},
	}
}

// SetLogger assigns a logger
func (conn *Connection) SetLogger(logger util.Logger) {
	conn.logger.Logger = logger
}

// SetCollector assigns a stats collector
func (conn *Connection) SetCollector(stats metrics.Collector) {
	conn.stats = stats
}

// writeHeader sends the status line and the entity headers of a video.
func (conn *Connection) writeHeader(video *library.Video) {
	header := conn.writer.Header()
	header.Set("Content-Type", video.ContentType)
	header.Set("Content-Length", strconv.FormatInt(video.Size, 10))
	header.Set("Last-Modified", video.ModTime.UTC().Format(http.TimeFormat))
	// the whole file is always sent
	header.Set("Accept-Ranges", "none")
	conn.writer.WriteHeader(http.StatusOK)
	conn.logger.Logkv(
		"event", eventHeaderSent,
		"video", video.Name,
		"message", "Sent header",
	)
}

// Serve sends the headers and then the whole contents of source to the client.
// If head is true, only the headers are sent.
//
// The transfer stops early when ctx is cancelled (normally because the client
// went away) or when writing to the client fails.
// Returns the number of bytes sent.
func (conn *Connection) Serve(ctx context.Context, video *library.Video, source io.Reader, head bool) (int64, error) {
	conn.writeHeader(video)
	if head {
		return 0, nil
	}

	var sent int64
	buffer := make([]byte, connectionChunkSize)
	for {
		select {
		case <-ctx.Done():
			conn.logger.Logkv(
				"event", eventConnectionClosed,
				"video", video.Name,
				"sent", sent,
				"message", "Downstream connection closed",
			)
			return sent, ctx.Err()
		default:
		}

		count, rerr := source.Read(buffer)
		if count > 0 {
			written, werr := conn.writer.Write(buffer[:count])
			sent += int64(written)
			conn.stats.BytesSent(uint64(written))
			if werr != nil {
				conn.logger.Logkv(
					"event", eventConnectionError,
					"error", errorConnectionWrite,
					"video", video.Name,
					"sent", sent,
					"message", fmt.Sprintf("Error sending video data: %v", werr),
				)
				return sent, werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			conn.logger.Logkv(
				"event", eventConnectionError,
				"error", errorConnectionRead,
				"video", video.Name,
				"sent", sent,
				"message", fmt.Sprintf("Error reading video data: %v", rerr),
			)
			return sent, rerr
		}
	}

	conn.logger.Logkv(
		"event", eventConnectionDone,
		"video", video.Name,
		"sent", sent,
		"message", "Streaming finished",
	)
	return sent, nil
}

// serveDetail returns a JSON error response of the form {"detail": "..."}.
func serveDetail(writer http.ResponseWriter, status int, detail string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.WriteHeader(status)
	// ignore errors, the client may already be gone
	_ = json.NewEncoder(writer).Encode(errorDetail{Detail: detail})
}

// errorDetail is the body of an error response.
type errorDetail struct {
	Detail string `json:"detail"`
}
