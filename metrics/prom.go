/* Copyright (c) 2019-2026 Gregor Riepl
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
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	defaultRegistry = prometheus.NewRegistry()
	// DefaultRegisterer is a prometheus client registry that contains no
	// default metrics. See prometheus.Registry for more information.
	DefaultRegisterer prometheus.Registerer = defaultRegistry
	// DefaultGatherer points to the same registry as DefaultRegisterer.
	DefaultGatherer prometheus.Gatherer = defaultRegistry
	// runtimeOnce guards the registration of the runtime collectors
	runtimeOnce sync.Once
)

// promErrorLogger is an internal error logger that prints to the kv log.
type promErrorLogger struct{}

func (*promErrorLogger) Println(v ...interface{}) {
	logger.Logkv(
		"event", eventMetricsError,
		"error", errorMetricsPrometheus,
		"message", fmt.Sprintln(v...),
	)
}

// PromHandler creates a prometheus HTTP handler that wraps DefaultGatherer
// and logs to the standard kv logger.
func PromHandler() http.Handler {
	return promhttp.HandlerFor(DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:      &promErrorLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors to
// DefaultRegisterer. Subsequent calls do nothing.
func RegisterRuntimeCollectors() {
	runtimeOnce.Do(func() {
		logger.Logkv(
			"event", eventMetricsRegister,
			"message", "Registering runtime collectors",
		)
		MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// MustRegister registers the provided Collectors with the DefaultRegisterer
// and panics if any error occurs.
func MustRegister(cs ...prometheus.Collector) {
	DefaultRegisterer.MustRegister(cs...)
}
