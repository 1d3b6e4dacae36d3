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

package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// defaultUpdateInterval is the aggregation period of the statistics updater
	defaultUpdateInterval = 1 * time.Second
)

// Collector is the public face of a statistics collector.
// It is implemented by the per-library stats.
type Collector interface {
	// ConnectionAdded notifies that a video transfer started.
	ConnectionAdded()
	// ConnectionRemoved notifies that a video transfer ended.
	ConnectionRemoved()
	// RequestServed notifies that a request was answered successfully.
	RequestServed()
	// RequestFailed notifies that a request was answered with an error status.
	RequestFailed()
	// BytesSent notifies that a chunk of video data was sent.
	BytesSent(count uint64)
	// StreamDuration reports how long a video transfer was running.
	StreamDuration(duration time.Duration)
}

// realCollector represents per-library state information
// and is continuously updated by the corresponding video server.
type realCollector struct {
	// number of active connections
	connections int64
	// total number of successful requests
	requests uint64
	// total number of failed requests
	errors uint64
	// total number of bytes sent
	bytes uint64
	// total streaming duration
	duration int64
}

func (stats *realCollector) ConnectionAdded() {
	atomic.AddInt64(&stats.connections, 1)
}

func (stats *realCollector) ConnectionRemoved() {
	atomic.AddInt64(&stats.connections, -1)
}

func (stats *realCollector) RequestServed() {
	atomic.AddUint64(&stats.requests, 1)
}

func (stats *realCollector) RequestFailed() {
	atomic.AddUint64(&stats.errors, 1)
}

func (stats *realCollector) BytesSent(count uint64) {
	atomic.AddUint64(&stats.bytes, count)
}

func (stats *realCollector) StreamDuration(duration time.Duration) {
	atomic.AddInt64(&stats.duration, int64(duration))
}

// clone creates a copy of the stats object - useful for
// storing state temporarily.
func (stats *realCollector) clone() *realCollector {
	return &realCollector{
		connections: atomic.LoadInt64(&stats.connections),
		requests:    atomic.LoadUint64(&stats.requests),
		errors:      atomic.LoadUint64(&stats.errors),
		bytes:       atomic.LoadUint64(&stats.bytes),
		duration:    atomic.LoadInt64(&stats.duration),
	}
}

// invsub subtracts this stats object from another and sets each
// value to the difference. Should not be used on live values, clone() first.
// The connection count is a level, not a counter, so it is copied from "to".
func (from *realCollector) invsub(to *realCollector) {
	from.connections = to.connections
	from.requests = to.requests - from.requests
	from.errors = to.errors - from.errors
	from.bytes = to.bytes - from.bytes
	from.duration = to.duration - from.duration
}

// LibraryStatistics is the current state of a single library
// or all libraries combined.
type LibraryStatistics struct {
	Connections       int64
	MaxConnections    int64
	TotalRequests     uint64
	TotalErrors       uint64
	TotalBytesSent    uint64
	TotalStreamTime   int64
	RequestsPerSecond uint64
	BytesPerSecond    uint64
}

// Statistics is the access interface for a stat tracker.
// Libraries update their state continuously, but the snapshots are only updated in periodic intervals.
type Statistics interface {
	// Start starts the updater thread.
	Start()
	// Stop stops the updater thread.
	Stop()
	// RegisterLibrary adds a new library to the map.
	// The name will be used as the lookup key.
	RegisterLibrary(name string) Collector
	// RemoveLibrary removes a library from the map.
	RemoveLibrary(name string)
	// GetLibraryStatistics fetches the statistics for a library, or nil if it isn't registered.
	// The returned object is a copy.
	GetLibraryStatistics(name string) *LibraryStatistics
	// GetAllLibraryStatistics fetches the statistics for all libraries.
	// The returned object is a copy.
	GetAllLibraryStatistics() map[string]*LibraryStatistics
	// GetGlobalStatistics fetches the global statistics.
	// The returned object is a copy.
	GetGlobalStatistics() *LibraryStatistics
}

// realStatistics implements a full statistics collector.
type realStatistics struct {
	lock      sync.RWMutex
	interval  time.Duration
	running   bool
	shutdown  chan struct{}
	stopped   chan struct{}
	internal  map[string]*realCollector
	libraries map[string]*LibraryStatistics
	global    *LibraryStatistics
}

// NewStatistics creates a new statistics container.
// You can start and stop the periodic updater using Start() and Stop().
// Register your libraries with RegisterLibrary(), this will return an updateable
// Collector. Snapshots of the aggregated statistics can then be fetched by means
// of the Get...() methods.
func NewStatistics(maxconns uint) Statistics {
	return newStatistics(maxconns, defaultUpdateInterval)
}

func newStatistics(maxconns uint, interval time.Duration) *realStatistics {
	return &realStatistics{
		interval:  interval,
		internal:  make(map[string]*realCollector),
		libraries: make(map[string]*LibraryStatistics),
		global: &LibraryStatistics{
			MaxConnections: int64(maxconns),
		},
	}
}

// update updates the aggregated statistics from the deltas of each library.
func (stats *realStatistics) update(delta time.Duration, change map[string]*realCollector) {
	stats.lock.Lock()
	defer stats.lock.Unlock()

	stats.global.Connections = 0
	stats.global.TotalRequests = 0
	stats.global.TotalErrors = 0
	stats.global.TotalBytesSent = 0
	stats.global.TotalStreamTime = 0
	stats.global.RequestsPerSecond = 0
	stats.global.BytesPerSecond = 0

	seconds := delta.Seconds()
	for name, library := range stats.libraries {
		diff, ok := change[name]
		if !ok {
			// registered after the last snapshot
			continue
		}

		library.Connections = diff.connections
		library.TotalRequests += diff.requests
		library.TotalErrors += diff.errors
		library.TotalBytesSent += diff.bytes
		library.TotalStreamTime += diff.duration
		if seconds > 0 {
			library.RequestsPerSecond = uint64(float64(diff.requests+diff.errors) / seconds)
			library.BytesPerSecond = uint64(float64(diff.bytes) / seconds)
		}

		stats.global.Connections += library.Connections
		stats.global.TotalRequests += library.TotalRequests
		stats.global.TotalErrors += library.TotalErrors
		stats.global.TotalBytesSent += library.TotalBytesSent
		stats.global.TotalStreamTime += library.TotalStreamTime
		stats.global.RequestsPerSecond += library.RequestsPerSecond
		stats.global.BytesPerSecond += library.BytesPerSecond
	}
}

// delta calculates the difference between a previous internal state
// and the current state and returns a copy of the current state.
// The previous state (the argument) is replaced with the difference.
func (stats *realStatistics) delta(previous map[string]*realCollector) map[string]*realCollector {
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	current := make(map[string]*realCollector, len(stats.internal))
	for name, library := range stats.internal {
		update := library.clone()
		prev, ok := previous[name]
		if !ok {
			prev = &realCollector{}
			previous[name] = prev
		}
		prev.invsub(update)
		current[name] = update
	}
	// drop libraries that were removed in the meantime
	for name := range previous {
		if _, ok := current[name]; !ok {
			delete(previous, name)
		}
	}
	return current
}

// tick takes one snapshot and aggregates it. Returns the new baseline.
func (stats *realStatistics) tick(previous map[string]*realCollector, elapsed time.Duration) map[string]*realCollector {
	current := stats.delta(previous)
	stats.update(elapsed, previous)
	return current
}

// loop runs a ticker to update all statistics periodically.
func (stats *realStatistics) loop() {
	defer close(stats.stopped)
	ticker := time.NewTicker(stats.interval)
	defer ticker.Stop()

	before := time.Now()
	// an empty baseline so the first period picks up everything counted so far
	previous := make(map[string]*realCollector)

	for {
		select {
		case <-stats.shutdown:
			logger.Logkv(
				"event", eventMetricsStop,
				"message", "Statistics updater stopped",
			)
			return
		case now := <-ticker.C:
			previous = stats.tick(previous, now.Sub(before))
			before = now
		}
	}
}

// Start starts the updater thread.
func (stats *realStatistics) Start() {
	stats.lock.Lock()
	defer stats.lock.Unlock()
	if stats.running {
		return
	}
	stats.running = true
	stats.shutdown = make(chan struct{})
	stats.stopped = make(chan struct{})
	logger.Logkv(
		"event", eventMetricsStart,
		"message", "Starting statistics updater",
		"interval", stats.interval.String(),
	)
	go stats.loop()
}

// Stop stops the updater thread and waits for it to terminate.
func (stats *realStatistics) Stop() {
	stats.lock.Lock()
	if !stats.running {
		stats.lock.Unlock()
		return
	}
	stats.running = false
	close(stats.shutdown)
	stopped := stats.stopped
	stats.lock.Unlock()
	<-stopped
}

// RegisterLibrary adds a new library to the map.
// Registering the same name twice returns the existing collector.
func (stats *realStatistics) RegisterLibrary(name string) Collector {
	stats.lock.Lock()
	defer stats.lock.Unlock()
	if current, ok := stats.internal[name]; ok {
		return current
	}
	current := &realCollector{}
	stats.internal[name] = current
	stats.libraries[name] = &LibraryStatistics{}
	return current
}

// RemoveLibrary removes a library from the map.
func (stats *realStatistics) RemoveLibrary(name string) {
	stats.lock.Lock()
	delete(stats.internal, name)
	delete(stats.libraries, name)
	stats.lock.Unlock()
}

func (stats *realStatistics) GetLibraryStatistics(name string) *LibraryStatistics {
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	library, ok := stats.libraries[name]
	if !ok {
		return nil
	}
	lcopy := *library
	return &lcopy
}

func (stats *realStatistics) GetAllLibraryStatistics() map[string]*LibraryStatistics {
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	libraries := make(map[string]*LibraryStatistics, len(stats.libraries))
	for name, library := range stats.libraries {
		lcopy := *library
		libraries[name] = &lcopy
	}
	return libraries
}

func (stats *realStatistics) GetGlobalStatistics() *LibraryStatistics {
	stats.lock.RLock()
	global := *stats.global
	stats.lock.RUnlock()
	return &global
}

// DummyStatistics is placeholder for a real stats handler.
type DummyStatistics struct{}

func (stats *DummyStatistics) Start() {}

func (stats *DummyStatistics) Stop() {}

func (stats *DummyStatistics) RegisterLibrary(name string) Collector {
	return &DummyCollector{}
}

func (stats *DummyStatistics) RemoveLibrary(name string) {}

func (stats *DummyStatistics) GetLibraryStatistics(name string) *LibraryStatistics {
	return &LibraryStatistics{}
}

func (stats *DummyStatistics) GetAllLibraryStatistics() map[string]*LibraryStatistics {
	return make(map[string]*LibraryStatistics)
}

func (stats *DummyStatistics) GetGlobalStatistics() *LibraryStatistics {
	return &LibraryStatistics{}
}

// DummyCollector is placeholder for a real stats collector.
type DummyCollector struct{}

func (stats *DummyCollector) ConnectionAdded()                      {}
func (stats *DummyCollector) ConnectionRemoved()                    {}
func (stats *DummyCollector) RequestServed()                        {}
func (stats *DummyCollector) RequestFailed()                        {}
func (stats *DummyCollector) BytesSent(count uint64)                {}
func (stats *DummyCollector) StreamDuration(duration time.Duration) {}
