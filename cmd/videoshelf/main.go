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
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/onitake/videoshelf/configuration"
	"github.com/onitake/videoshelf/metrics"
	"github.com/onitake/videoshelf/util"
)

const (
	moduleMain = "main"
	//
	eventMainError        = "error"
	eventMainConfig       = "config"
	eventMainConfigVideos = "videos"
	eventMainConfigDash   = "dashboard"
	eventMainConfigApi    = "api"
	eventMainStartMonitor = "start_monitor"
	eventMainStartServer  = "start_server"
	eventMainShutdown     = "shutdown"
	eventMainEnvironment  = "environment"
	//
	errorMainLibraryNotFound = "library_notfound"
	errorMainInvalidApi      = "invalid_api"
	errorMainInvalidResource = "invalid_resource"
	errorMainInvalidBackend  = "invalid_backend"
	errorMainServer          = "server"
	//
	defaultConfigFile = "videoshelf.json"
	// shutdownTimeout is the time given to running transfers after a shutdown signal
	shutdownTimeout = 10 * time.Second
)

var logger = util.NewGlobalModuleLogger(moduleMain, nil)

// loadConfig reads the configuration file and applies environment overrides.
// A missing default configuration file is not an error, the built-in defaults
// are used instead.
func loadConfig(configname string, explicit bool) (*configuration.Configuration, error) {
	config, err := configuration.LoadConfigurationFile(configname)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		config, err = configuration.LoadConfigurationBytes([]byte("{}"))
	}
	if err != nil {
		return nil, err
	}
	config.ApplyEnvironment(os.LookupEnv)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setupLogging installs the global log backend selected by the configuration.
// The returned function flushes and closes the backend.
func setupLogging(config *configuration.Configuration) (func(), error) {
	var backend util.Logger = &util.ConsoleLogger{}
	closer := func() {}
	if config.LogFormat == configuration.LogFormatText {
		backend = util.NewTextLogger(os.Stdout)
	}
	if config.Log != "" {
		flogger, err := util.NewFileLogger(config.Log, true)
		if err != nil {
			return nil, err
		}
		backend = flogger
		closer = flogger.Close
	}
	util.SetGlobalStandardLogger(backend)
	return closer, nil
}

func main() {
	configFlag := flag.String("config", "", fmt.Sprintf("location of the configuration file (default %s)", defaultConfigFile))
	flag.Parse()

	configname := *configFlag
	explicit := configname != ""
	if !explicit && flag.NArg() > 0 {
		configname = flag.Arg(0)
		explicit = true
	}
	if configname == "" {
		configname = defaultConfigFile
	}

	// settings from .env are visible to the environment overrides
	envErr := godotenv.Load()
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Fatal("Error loading .env file: ", envErr)
	}

	config, err := loadConfig(configname, explicit)
	if err != nil {
		log.Fatal("Error parsing configuration: ", err)
	}

	closeLog, err := setupLogging(config)
	if err != nil {
		log.Fatal("Error opening log: ", err)
	}
	defer closeLog()

	logger.Logkv(
		"event", eventMainConfig,
		"config", configname,
		"listen", config.Listen,
		"timeout", config.Timeout,
		"resources", len(config.Resources),
		"message", fmt.Sprintf("Loaded configuration %s", configname),
	)
	if envErr == nil {
		logger.Logkv(
			"event", eventMainEnvironment,
			"message", "Loaded environment from .env",
		)
	}

	if config.Profile {
		EnableProfiling()
		defer DisableProfiling()
	}

	var stats metrics.Statistics
	if config.NoStats {
		stats = &metrics.DummyStatistics{}
	} else {
		stats = metrics.NewStatistics(config.MaxConnections)
	}

	handler, err := newHandler(config, stats)
	if err != nil {
		log.Fatal("Error configuring resources: ", err)
	}
	defer handler.Shutdown()

	logger.Logkv(
		"event", eventMainStartMonitor,
		"message", "Starting stats monitor",
	)
	stats.Start()
	defer stats.Stop()

	server := &http.Server{
		Addr:              config.Listen,
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(config.Timeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals...)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Logkv(
			"event", eventMainStartServer,
			"listen", config.Listen,
			"message", fmt.Sprintf("Starting server on %s", config.Listen),
		)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		logger.Logkv(
			"event", eventMainError,
			"error", errorMainServer,
			"message", fmt.Sprintf("Server failed: %v", err),
		)
		closeLog()
		log.Fatal("Server failed: ", err)
	case <-ctx.Done():
		logger.Logkv(
			"event", eventMainShutdown,
			"message", "Shutting down",
		)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Logkv(
				"event", eventMainError,
				"error", errorMainServer,
				"message", fmt.Sprintf("Unclean shutdown: %v", err),
			)
		}
	}
}
