/* Copyright (c) 2026 Gregor Riepl
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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/onitake/videoshelf/library"
	"github.com/onitake/videoshelf/metrics"
	"github.com/onitake/videoshelf/util"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streaming_requests",
			Help: "Total number of requests answered, by endpoint and status code.",
		},
		[]string{"library", "endpoint", "status"},
	)
	metricBytesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streaming_bytes_sent",
			Help: "Total number of video bytes sent.",
		},
		[]string{"library"},
	)
	metricConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streaming_connections",
			Help: "Number of active video transfers.",
		},
		[]string{"library"},
	)
	metricDuration = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streaming_duration",
			Help: "Total time spent streaming, summed over all video transfers. In nanoseconds.",
		},
		[]string{"library"},
	)
)

func init() {
	metrics.MustRegister(metricRequests)
	metrics.MustRegister(metricBytesSent)
	metrics.MustRegister(metricConnections)
	metrics.MustRegister(metricDuration)
}

const (
	endpointList  = "list"
	endpointVideo = "video"
	endpointInfo  = "info"
)

// VideoServer exposes a video library over HTTP.
//
// Mount it on a chi router with Routes(), or use it directly as an http.Handler.
type VideoServer struct {
	// name identifies the library in logs and metrics, normally its mount point
	name string
	// lib is the directory being served
	lib *library.Library
	// auth limits the number of concurrent transfers
	auth *AccessController
	// stats is the collector for this library
	stats metrics.Collector
	// logger is the kv logger for this server
	logger util.Logger
	// router is used by ServeHTTP
	router chi.Router
	// promRequests and friends are curried with the library name
	promRequests    *prometheus.CounterVec
	promBytesSent   prometheus.Counter
	promConnections prometheus.Gauge
	promDuration    prometheus.Counter
}

// NewVideoServer creates a server for a video library.
// If auth is nil, the number of concurrent transfers is not limited.
func NewVideoServer(name string, lib *library.Library, auth *AccessController) *VideoServer {
	if auth == nil {
		auth = NewAccessController(0)
	}
	server := &VideoServer{
		name:            name,
		lib:             lib,
		auth:            auth,
		stats:           &metrics.DummyCollector{},
		logger:          logger,
		promRequests:    metricRequests.MustCurryWith(prometheus.Labels{"library": name}),
		promBytesSent:   metricBytesSent.With(prometheus.Labels{"library": name}),
		promConnections: metricConnections.With(prometheus.Labels{"library": name}),
		promDuration:    metricDuration.With(prometheus.Labels{"library": name}),
	}
	server.router = chi.NewRouter()
	server.Routes(server.router)
	return server
}

// SetLogger assigns a logger
func (server *VideoServer) SetLogger(logger util.Logger) {
	server.logger = logger
}

// SetCollector assigns a stats collector
func (server *VideoServer) SetCollector(stats metrics.Collector) {
	server.stats = stats
}

// Routes registers the library endpoints on a router.
// The listing is registered before the file route, so a video called
// "list" cannot be retrieved.
func (server *VideoServer) Routes(router chi.Router) {
	router.Get("/list", server.ServeList)
	router.Get("/{filename}", server.ServeVideo)
	router.Head("/{filename}", server.ServeVideo)
	router.Get("/{filename}/info", server.ServeInfo)
}

// ServeHTTP serves requests relative to the library root.
func (server *VideoServer) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	server.router.ServeHTTP(writer, request)
}

// filename extracts the requested file name from the route.
// chi matches on the raw path when it contains escaped characters,
// in which case the parameter still needs to be unescaped.
func filename(request *http.Request) (string, error) {
	name := chi.URLParam(request, "filename")
	if request.URL.RawPath != "" {
		return url.PathUnescape(name)
	}
	return name, nil
}

// account records the outcome of a request in the collector and the metrics.
func (server *VideoServer) account(endpoint string, status int) {
	if status < 400 {
		server.stats.RequestServed()
	} else {
		server.stats.RequestFailed()
	}
	server.promRequests.With(prometheus.Labels{
		"endpoint": endpoint,
		"status":   strconv.Itoa(status),
	}).Inc()
}

// fail answers a request with an error status and records it.
func (server *VideoServer) fail(writer http.ResponseWriter, endpoint string, status int, detail string) {
	serveDetail(writer, status, detail)
	server.account(endpoint, status)
}

// failLibrary maps library errors to HTTP status codes.
func (server *VideoServer) failLibrary(writer http.ResponseWriter, request *http.Request, endpoint string, name string, err error) {
	switch {
	case errors.Is(err, library.ErrNotFound), errors.Is(err, library.ErrInvalidName):
		server.logger.Logkv(
			"event", eventServerNotFound,
			"library", server.name,
			"video", name,
			"remote", request.RemoteAddr,
			"message", fmt.Sprintf("Video %q not found", name),
		)
		server.fail(writer, endpoint, http.StatusNotFound, fmt.Sprintf("Video '%s' not found", name))
	case errors.Is(err, library.ErrRootMissing):
		server.logger.Logkv(
			"event", eventServerError,
			"error", errorServerDirectory,
			"library", server.name,
			"root", server.lib.Root(),
			"message", fmt.Sprintf("Video directory %s is not accessible", server.lib.Root()),
		)
		server.fail(writer, endpoint, http.StatusInternalServerError, "Video directory not found on server")
	default:
		server.logger.Logkv(
			"event", eventServerError,
			"error", errorServerOpen,
			"library", server.name,
			"video", name,
			"message", fmt.Sprintf("Error accessing video %q: %v", name, err),
		)
		server.fail(writer, endpoint, http.StatusInternalServerError, "Error accessing video")
	}
}

// serveJSON writes a 200 response with a JSON body.
func (server *VideoServer) serveJSON(writer http.ResponseWriter, endpoint string, value interface{}) {
	body, err := json.Marshal(value)
	if err != nil {
		server.logger.Logkv(
			"event", eventServerError,
			"error", errorServerEncode,
			"library", server.name,
			"message", fmt.Sprintf("Cannot encode response: %v", err),
		)
		server.fail(writer, endpoint, http.StatusInternalServerError, "Cannot encode response")
		return
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.WriteHeader(http.StatusOK)
	writer.Write(body)
	server.account(endpoint, http.StatusOK)
}

// ServeList answers with a JSON array of all video file names.
func (server *VideoServer) ServeList(writer http.ResponseWriter, request *http.Request) {
	names, err := server.lib.List()
	if err != nil {
		server.failLibrary(writer, request, endpointList, "", err)
		return
	}
	server.logger.Logkv(
		"event", eventServerList,
		"library", server.name,
		"count", len(names),
		"remote", request.RemoteAddr,
		"message", fmt.Sprintf("Listing %d videos for %s", len(names), request.RemoteAddr),
	)
	server.serveJSON(writer, endpointList, names)
}

// ServeVideo sends the contents of a single video file.
func (server *VideoServer) ServeVideo(writer http.ResponseWriter, request *http.Request) {
	name, err := filename(request)
	if err != nil {
		server.failLibrary(writer, request, endpointVideo, chi.URLParam(request, "filename"), library.ErrInvalidName)
		return
	}

	video, fd, err := server.lib.Open(name)
	if err != nil {
		server.failLibrary(writer, request, endpointVideo, name, err)
		return
	}
	defer fd.Close()

	head := request.Method == http.MethodHead
	if !head {
		if !server.auth.Accept(request.RemoteAddr) {
			server.logger.Logkv(
				"event", eventServerBusy,
				"library", server.name,
				"video", name,
				"remote", request.RemoteAddr,
				"message", "Connection limit reached",
			)
			server.fail(writer, endpointVideo, http.StatusServiceUnavailable, "Too many connections")
			return
		}
		defer server.auth.Release()
		server.stats.ConnectionAdded()
		server.promConnections.Inc()
		defer func() {
			server.stats.ConnectionRemoved()
			server.promConnections.Dec()
		}()
	}

	server.logger.Logkv(
		"event", eventServerVideo,
		"library", server.name,
		"video", name,
		"size", video.Size,
		"remote", request.RemoteAddr,
		"message", fmt.Sprintf("Sending video %s to %s", name, request.RemoteAddr),
	)

	conn := NewConnection(writer, request.RemoteAddr)
	conn.SetLogger(server.logger)
	conn.SetCollector(server.stats)
	start := time.Now()
	sent, _ := conn.Serve(request.Context(), video, fd, head)
	duration := time.Since(start)
	server.stats.StreamDuration(duration)
	server.promBytesSent.Add(float64(sent))
	server.promDuration.Add(float64(duration))
	// the header is already out, errors were logged by the connection
	server.account(endpointVideo, http.StatusOK)
}

// ServeInfo answers with the container metadata of a video.
func (server *VideoServer) ServeInfo(writer http.ResponseWriter, request *http.Request) {
	name, err := filename(request)
	if err != nil {
		server.failLibrary(writer, request, endpointInfo, chi.URLParam(request, "filename"), library.ErrInvalidName)
		return
	}

	info, err := server.lib.Probe(name)
	switch {
	case err == nil:
		server.logger.Logkv(
			"event", eventServerInfo,
			"library", server.name,
			"video", name,
			"remote", request.RemoteAddr,
			"message", fmt.Sprintf("Sending media info of %s", name),
		)
		server.serveJSON(writer, endpointInfo, info)
	case errors.Is(err, library.ErrUnsupported):
		server.fail(writer, endpointInfo, http.StatusUnsupportedMediaType, fmt.Sprintf("Video '%s' is not an ISO media file", name))
	case errors.Is(err, library.ErrNotFound), errors.Is(err, library.ErrInvalidName), errors.Is(err, library.ErrRootMissing):
		server.failLibrary(writer, request, endpointInfo, name, err)
	default:
		server.logger.Logkv(
			"event", eventServerError,
			"error", errorServerProbe,
			"library", server.name,
			"video", name,
			"message", fmt.Sprintf("Cannot parse video %s: %v", name, err),
		)
		server.fail(writer, endpointInfo, http.StatusUnprocessableEntity, fmt.Sprintf("Video '%s' cannot be parsed", name))
	}
}
