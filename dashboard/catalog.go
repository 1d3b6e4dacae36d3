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

package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onitake/videoshelf/metrics"
	"github.com/onitake/videoshelf/util"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// listSizeLimit is the maximum accepted size of a video list response
	listSizeLimit = 1024 * 1024
	// catalogFetchQueue is the number of requests that can wait for the fetcher
	catalogFetchQueue = 10
)

var (
	// ErrCatalogOffline is returned by Videos after Shutdown.
	ErrCatalogOffline = errors.New("dashboard: catalog is offline")
	// ErrInvalidBackend is returned for backend URLs that cannot be fetched.
	ErrInvalidBackend = errors.New("dashboard: backend must be an absolute http or https URL")
	// ErrBackendStatus is returned when the backend answers with an error status.
	ErrBackendStatus = errors.New("dashboard: backend returned an error")
)

var (
	metricFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_fetches",
			Help: "Number of video list fetches, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	metrics.MustRegister(metricFetches)
}

// Lister produces the names of the available videos.
//
// *library.Library implements it for a local video directory,
// RemoteList for a video backend reachable over HTTP.
type Lister interface {
	List() ([]string, error)
}

// RemoteList fetches the video list from the list endpoint of a video backend.
type RemoteList struct {
	// url is the list endpoint
	url *url.URL
	// client is used for all requests
	client *http.Client
}

// NewRemoteList creates a lister for the backend base URL, which must be absolute.
// The list is fetched from {backend}/list.
// timeout limits the duration of each request, 0 means no limit.
func NewRemoteList(backend string, timeout time.Duration) (*RemoteList, error) {
	parsed, err := url.Parse(strings.TrimRight(backend, "/") + "/list")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackend, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackend, backend)
	}
	return &RemoteList{
		url: parsed,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// URL returns the list endpoint.
func (remote *RemoteList) URL() string {
	return remote.url.String()
}

// List requests the video list from the backend.
func (remote *RemoteList) List() ([]string, error) {
	response, err := remote.client.Get(remote.url.String())
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		// FastAPI style error bodies carry a detail message
		var reply struct {
			Detail string `json:"detail"`
		}
		// an undecodable body falls back to the status line
		_ = json.NewDecoder(io.LimitReader(response.Body, listSizeLimit)).Decode(&reply)
		if reply.Detail != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrBackendStatus, response.Status, reply.Detail)
		}
		return nil, fmt.Errorf("%w: %s", ErrBackendStatus, response.Status)
	}
	var names []string
	if err := json.NewDecoder(io.LimitReader(response.Body, listSizeLimit)).Decode(&names); err != nil {
		return nil, fmt.Errorf("dashboard: invalid video list: %w", err)
	}
	if names == nil {
		names = make([]string, 0)
	}
	return names, nil
}

// catalogEntry is a cached video list.
// This type is used to ship data between the fetcher and the requesters.
type catalogEntry struct {
	names   []string
	err     error
	updated time.Time
}

// Catalog caches the video list of a Lister.
//
// All fetches are serialised through a single fetcher goroutine,
// so concurrent page views cause at most one request to the backend.
type Catalog struct {
	// source produces the list
	source Lister
	// the cache time
	stale time.Duration
	// fetcher data request channel
	fetcher chan chan<- *catalogEntry
	// the cached list
	// NOTE do not access this directly, use the fetcher instead
	entry *catalogEntry
	// a channel to signal shutdown to the fetcher
	shutdown chan struct{}
	// logger is the kv logger for this catalog
	logger util.Logger
}

// NewCatalog creates a video list cache.
// The list is not fetched until the first request.
// If cache is non-zero, a fetched list is kept for this duration. If it is zero,
// the list will be fetched from the source every time it is requested.
// Failed fetches are never cached.
func NewCatalog(source Lister, cache time.Duration) *Catalog {
	return &Catalog{
		source:   source,
		stale:    cache,
		fetcher:  make(chan chan<- *catalogEntry, catalogFetchQueue),
		shutdown: make(chan struct{}),
		logger:   logger,
	}
}

// SetLogger assigns a logger.
func (catalog *Catalog) SetLogger(logger util.Logger) {
	catalog.logger = logger
}

// Start launches the fetcher thread.
// This should only be called once.
func (catalog *Catalog) Start() {
	catalog.logger.Logkv(
		"event", eventCatalogStart,
		"message", "Starting fetcher",
	)
	go catalog.fetch()
}

// Shutdown stops the fetcher thread.
func (catalog *Catalog) Shutdown() {
	catalog.logger.Logkv(
		"event", eventCatalogShutdown,
		"message", "Shutting down fetcher",
	)
	close(catalog.shutdown)
}

// fetch waits for list requests and handles them one-by-one.
// If the list is already cached and not stale, it replies immediately.
func (catalog *Catalog) fetch() {
	for {
		select {
		case <-catalog.shutdown:
			catalog.logger.Logkv(
				"event", eventCatalogOffline,
				"message", "Fetcher is offline",
			)
			return
		case request := <-catalog.fetcher:
			if catalog.entry == nil || catalog.entry.err != nil || time.Since(catalog.entry.updated) >= catalog.stale {
				catalog.logger.Logkv(
					"event", eventCatalogStale,
					"message", "Video list is stale",
				)
				catalog.entry = catalog.load()
			}
			request <- catalog.entry
		}
	}
}

// load fetches the list from the source.
// Does not return errors. Instead, the entry contains the error.
func (catalog *Catalog) load() *catalogEntry {
	names, err := catalog.source.List()
	entry := &catalogEntry{
		names:   names,
		err:     err,
		updated: time.Now(),
	}
	if err != nil {
		metricFetches.With(prometheus.Labels{"result": "error"}).Inc()
		catalog.logger.Logkv(
			"event", eventCatalogError,
			"error", errorCatalogFetch,
			"message", fmt.Sprintf("Cannot fetch video list: %v", err),
		)
		entry.names = nil
		return entry
	}
	metricFetches.With(prometheus.Labels{"result": "ok"}).Inc()
	catalog.logger.Logkv(
		"event", eventCatalogFetched,
		"count", len(names),
		"message", fmt.Sprintf("Fetched %d videos", len(names)),
	)
	return entry
}

// Videos returns the current video list.
// Start must have been called before.
func (catalog *Catalog) Videos() ([]string, error) {
	// buffered, so the fetcher never blocks on a requester
	reply := make(chan *catalogEntry, 1)
	select {
	case <-catalog.shutdown:
		return nil, ErrCatalogOffline
	default:
	}
	select {
	case catalog.fetcher <- reply:
	case <-catalog.shutdown:
		return nil, ErrCatalogOffline
	}
	select {
	case entry := <-reply:
		return entry.names, entry.err
	case <-catalog.shutdown:
		return nil, ErrCatalogOffline
	}
}
