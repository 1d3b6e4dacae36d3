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

package api

import (
	"encoding/json"
	"net/http"

	"github.com/onitake/videoshelf/metrics"
)

// connectChecker represents a type that can report its "connected" status.
type connectChecker interface {
	Connected() bool
}

// serveJson encodes a response object and sends it with status 200.
func serveJson(writer http.ResponseWriter, response interface{}) {
	body, err := json.Marshal(response)
	if err != nil {
		writer.WriteHeader(http.StatusInternalServerError)
		writer.Write([]byte(http.StatusText(http.StatusInternalServerError)))
		logger.Logkv(
			"event", eventApiError,
			"error", errorApiJsonEncode,
			"message", err.Error(),
		)
		return
	}
	writer.WriteHeader(http.StatusOK)
	writer.Write(body)
}

// loadStatus maps the global connection count to a status string.
// overload is returned when the connection limit is reached.
func loadStatus(global *metrics.LibraryStatistics, overload string) string {
	if global.MaxConnections != 0 && global.Connections >= global.MaxConnections {
		return overload
	}
	return "ok"
}

// healthApi encapsulates a system status object and
// provides an HTTP/JSON handler for reporting system health.
type healthApi struct {
	stats metrics.Statistics
}

// NewHealthApi creates a new health API object,
// serving data from a system Statistics object.
func NewHealthApi(stats metrics.Statistics) http.Handler {
	return &healthApi{
		stats: stats,
	}
}

// ServeHTTP is the http handler method.
// It sends back information about system health.
func (api *healthApi) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Add("Content-Type", "application/json")

	global := api.stats.GetGlobalStatistics()
	var stats struct {
		Status    string `json:"status"`
		Viewer    int    `json:"viewer"`
		Max       int    `json:"max"`
		Bandwidth int    `json:"bandwidth"`
	}
	stats.Status = loadStatus(global, "full")
	stats.Viewer = int(global.Connections)
	stats.Max = int(global.MaxConnections)
	stats.Bandwidth = int(global.BytesPerSecond * 8 / 1024) // kbit/s

	serveJson(writer, &stats)
}

// statisticsApi encapsulates a system status object and
// provides an HTTP/JSON handler for reporting total system statistics.
type statisticsApi struct {
	stats metrics.Statistics
}

// NewStatisticsApi creates a new statistics API object,
// serving data from a system Statistics object.
func NewStatisticsApi(stats metrics.Statistics) http.Handler {
	return &statisticsApi{
		stats: stats,
	}
}

// libraryStatistics is the JSON representation of a LibraryStatistics snapshot.
type libraryStatistics struct {
	Connections       int    `json:"connections"`
	TotalRequests     uint64 `json:"total_requests"`
	TotalErrors       uint64 `json:"total_errors"`
	TotalBytesSent    uint64 `json:"total_bytes_sent"`
	TotalStreamTime   int64  `json:"total_stream_time_ns"`
	RequestsPerSecond uint64 `json:"requests_per_second"`
	BytesPerSecond    uint64 `json:"bytes_per_second"`
}

func newLibraryStatistics(stats *metrics.LibraryStatistics) libraryStatistics {
	return libraryStatistics{
		Connections:       int(stats.Connections),
		TotalRequests:     stats.TotalRequests,
		TotalErrors:       stats.TotalErrors,
		TotalBytesSent:    stats.TotalBytesSent,
		TotalStreamTime:   stats.TotalStreamTime,
		RequestsPerSecond: stats.RequestsPerSecond,
		BytesPerSecond:    stats.BytesPerSecond,
	}
}

// ServeHTTP is the http handler method.
// It sends back the global counters and a breakdown per library.
func (api *statisticsApi) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Add("Content-Type", "application/json")

	global := api.stats.GetGlobalStatistics()
	var stats struct {
		Status         string `json:"status"`
		MaxConnections int    `json:"max_connections"`
		libraryStatistics
		Libraries map[string]libraryStatistics `json:"libraries"`
	}
	stats.Status = loadStatus(global, "overload")
	stats.MaxConnections = int(global.MaxConnections)
	stats.libraryStatistics = newLibraryStatistics(global)
	stats.Libraries = make(map[string]libraryStatistics)
	for name, library := range api.stats.GetAllLibraryStatistics() {
		stats.Libraries[name] = newLibraryStatistics(library)
	}

	serveJson(writer, &stats)
}

// libraryStateApi provides an API for checking library availability.
// The HTTP handler returns status code 200 if the video directory
// is accessible and 404 if not.
type libraryStateApi struct {
	library connectChecker
}

// NewLibraryStateApi creates a new library status API object,
// serving the "connected" status of a video library.
func NewLibraryStateApi(library connectChecker) http.Handler {
	return &libraryStateApi{
		library: library,
	}
}

// ServeHTTP is the http handler method.
// It sends back "200 ok" if the library is accessible and "404 not found" if not,
// along with the corresponding HTTP status code.
func (api *libraryStateApi) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Add("Content-Type", "text/plain")

	if api.library.Connected() {
		writer.WriteHeader(http.StatusOK)
		writer.Write([]byte("200 ok"))
	} else {
		writer.WriteHeader(http.StatusNotFound)
		writer.Write([]byte("404 not found"))
	}
}

// NewPrometheusApi creates a new Prometheus metrics API object,
// serving metrics to a Prometheus instance.
func NewPrometheusApi() http.Handler {
	return metrics.PromHandler()
}
