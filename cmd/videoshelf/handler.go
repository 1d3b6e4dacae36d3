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
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/onitake/videoshelf/api"
	"github.com/onitake/videoshelf/configuration"
	"github.com/onitake/videoshelf/dashboard"
	"github.com/onitake/videoshelf/library"
	"github.com/onitake/videoshelf/metrics"
	"github.com/onitake/videoshelf/streaming"
	"github.com/rs/cors"
)

// Handler is the root HTTP handler with all configured resources.
type Handler struct {
	http.Handler
	// catalogs are the running dashboard fetchers
	catalogs []*dashboard.Catalog
}

// Shutdown stops the background fetchers of all dashboards.
func (handler *Handler) Shutdown() {
	for _, catalog := range handler.catalogs {
		catalog.Shutdown()
	}
}

// fail releases everything started so far and returns err.
func (handler *Handler) fail(err error) (*Handler, error) {
	handler.Shutdown()
	return nil, err
}

// cleanPrefix removes trailing slashes from a serve path, except from the root.
func cleanPrefix(serve string) string {
	trimmed := strings.TrimRight(serve, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// isRemote tells if a dashboard backend is an absolute URL rather than a local path.
func isRemote(backend string) bool {
	return strings.HasPrefix(backend, "http://") || strings.HasPrefix(backend, "https://")
}

// newHandler builds the router for all resources in the configuration.
//
// Video libraries are registered with stats. Dashboards that link to a videos
// resource of the same server list its library directly, dashboards with an
// absolute backend URL fetch the list over HTTP.
func newHandler(config *configuration.Configuration, stats metrics.Statistics) (*Handler, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	handler := &Handler{}
	controller := streaming.NewAccessController(config.MaxConnections)
	limiter := streaming.NewRateLimiter(config.RateLimit, config.RateBurst)
	timeout := time.Duration(config.Timeout) * time.Second

	// libraries first, so dashboards and checks can refer to them in any order
	libraries := make(map[string]*library.Library)
	for _, resource := range config.Resources {
		if resource.Type != configuration.ResourceVideos {
			continue
		}
		serve := cleanPrefix(resource.Serve)
		logger.Logkv(
			"event", eventMainConfigVideos,
			"serve", serve,
			"remote", resource.Remote,
			"message", fmt.Sprintf("Serving videos from %s on %s", resource.Remote, serve),
		)
		lib := library.New(resource.Remote, resource.Extensions)
		libraries[serve] = lib

		server := streaming.NewVideoServer(serve, lib, controller)
		server.SetCollector(stats.RegisterLibrary(serve))
		router.Route(serve, func(sub chi.Router) {
			sub.Use(limiter.Handler)
			server.Routes(sub)
		})
	}

	for i, resource := range config.Resources {
		serve := cleanPrefix(resource.Serve)
		switch resource.Type {
		case configuration.ResourceVideos:
			// already mounted

		case configuration.ResourceDashboard:
			var source dashboard.Lister
			if isRemote(resource.Remote) {
				remote, err := dashboard.NewRemoteList(resource.Remote, timeout)
				if err != nil {
					logger.Logkv(
						"event", eventMainError,
						"error", errorMainInvalidBackend,
						"remote", resource.Remote,
						"message", fmt.Sprintf("Invalid dashboard backend: %v", err),
					)
					return handler.fail(err)
				}
				source = remote
			} else {
				lib, ok := libraries[cleanPrefix(resource.Remote)]
				if !ok {
					logger.Logkv(
						"event", eventMainError,
						"error", errorMainLibraryNotFound,
						"remote", resource.Remote,
						"message", fmt.Sprintf("Error, no videos resource on %s", resource.Remote),
					)
					return handler.fail(fmt.Errorf("%w %d: no videos resource on %s", configuration.ErrInvalidResource, i, resource.Remote))
				}
				source = lib
			}
			logger.Logkv(
				"event", eventMainConfigDash,
				"serve", serve,
				"remote", resource.Remote,
				"message", fmt.Sprintf("Serving dashboard for %s on %s", resource.Remote, serve),
			)
			catalog := dashboard.NewCatalog(source, time.Duration(resource.Cache)*time.Second)
			catalog.Start()
			handler.catalogs = append(handler.catalogs, catalog)
			router.Handle(serve, dashboard.NewDashboard(catalog, resource.Remote, resource.Title, resource.Chat))

		case configuration.ResourceApi:
			var endpoint http.Handler
			switch resource.Api {
			case configuration.ApiHealth:
				endpoint = api.NewHealthApi(stats)
			case configuration.ApiStatistics:
				endpoint = api.NewStatisticsApi(stats)
			case configuration.ApiPrometheus:
				metrics.RegisterRuntimeCollectors()
				endpoint = api.NewPrometheusApi()
			case configuration.ApiCheck:
				lib, ok := libraries[cleanPrefix(resource.Remote)]
				if !ok {
					logger.Logkv(
						"event", eventMainError,
						"error", errorMainLibraryNotFound,
						"api", resource.Api,
						"remote", resource.Remote,
						"message", fmt.Sprintf("Error, no videos resource on %s", resource.Remote),
					)
					return handler.fail(fmt.Errorf("%w %d: no videos resource on %s", configuration.ErrInvalidResource, i, resource.Remote))
				}
				endpoint = api.NewLibraryStateApi(lib)
			default:
				logger.Logkv(
					"event", eventMainError,
					"error", errorMainInvalidApi,
					"api", resource.Api,
					"message", fmt.Sprintf("Invalid API type: %s", resource.Api),
				)
				return handler.fail(fmt.Errorf("%w %d: unknown api %q", configuration.ErrInvalidResource, i, resource.Api))
			}
			logger.Logkv(
				"event", eventMainConfigApi,
				"api", resource.Api,
				"serve", serve,
				"message", fmt.Sprintf("Registering %s API on %s", resource.Api, serve),
			)
			router.Handle(serve, endpoint)

		default:
			logger.Logkv(
				"event", eventMainError,
				"error", errorMainInvalidResource,
				"type", resource.Type,
				"message", fmt.Sprintf("Invalid resource type: %s", resource.Type),
			)
			return handler.fail(fmt.Errorf("%w %d: unknown type %q", configuration.ErrInvalidResource, i, resource.Type))
		}
	}

	handler.Handler = router
	if len(config.Cors.Origins) > 0 {
		handler.Handler = cors.New(cors.Options{
			AllowedOrigins: config.Cors.Origins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(router)
	}
	return handler, nil
}
