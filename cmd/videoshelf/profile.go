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

package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"runtime/debug"

	"github.com/google/gops/agent"
)

const (
	// profileListen is the address of the pprof web server
	profileListen = "localhost:6060"
	//
	eventProfileStart   = "profile"
	eventProfileReclaim = "reclaim"
	eventProfileError   = "error"
	//
	errorProfileServer = "pprof"
	errorProfileAgent  = "gops"
)

// EnableProfiling starts the pprof web server and the gops diagnostics agent.
func EnableProfiling() {
	// Enable block profiling (granularity: 100 ms)
	runtime.SetBlockProfileRate(100000000)
	// Register URL to force reclaiming memory
	http.HandleFunc("/reclaim", func(http.ResponseWriter, *http.Request) {
		logger.Logkv(
			"event", eventProfileReclaim,
			"message", "Reclaiming memory",
		)
		debug.FreeOSMemory()
	})
	go func() {
		// pprof registers on the default mux, which is not used by the main server
		err := http.ListenAndServe(profileListen, nil)
		logger.Logkv(
			"event", eventProfileError,
			"error", errorProfileServer,
			"message", fmt.Sprintf("Profiling server stopped: %v", err),
		)
	}()
	if err := agent.Listen(agent.Options{}); err != nil {
		logger.Logkv(
			"event", eventProfileError,
			"error", errorProfileAgent,
			"message", fmt.Sprintf("Could not start gops agent: %v", err),
		)
	}
	logger.Logkv(
		"event", eventProfileStart,
		"listen", profileListen,
		"message", fmt.Sprintf("Profiling enabled on %s", profileListen),
	)
}

// DisableProfiling stops the gops agent.
func DisableProfiling() {
	agent.Close()
}
