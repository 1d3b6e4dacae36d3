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

package configuration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rogpeppe/rjson"
)

const (
	// ResourceVideos serves the listing and retrieval endpoints for a video directory.
	ResourceVideos = "videos"
	// ResourceDashboard serves the browser dashboard.
	ResourceDashboard = "dashboard"
	// ResourceApi serves one of the monitoring APIs.
	ResourceApi = "api"
	//
	ApiHealth     = "health"
	ApiStatistics = "statistics"
	ApiPrometheus = "prometheus"
	ApiCheck      = "check"
	//
	LogFormatJson = "json"
	LogFormatText = "text"
)

const (
	// EnvListen overrides Listen.
	EnvListen = "VIDEOSHELF_LISTEN"
	// EnvVideoRoot overrides the directory of every videos resource.
	EnvVideoRoot = "VIDEO_ROOT"
	// EnvBackend overrides the backend URL of every dashboard resource.
	EnvBackend = "VIDEOSHELF_BACKEND"
	// EnvChat overrides the chat widget URL of every dashboard resource.
	EnvChat = "VIDEOSHELF_CHAT"
)

var (
	// ErrInvalidResource is returned by Validate when a resource is unusable.
	ErrInvalidResource = errors.New("configuration: invalid resource")
	// ErrInvalidLogFormat is returned by Validate for unknown log formats.
	ErrInvalidLogFormat = errors.New("configuration: invalid log format")
)

// Resource is a single HTTP endpoint.
type Resource struct {
	// Type is the resource type: videos, dashboard or api.
	Type string `json:"type"`
	// Api is the API type, if Type is api.
	Api string `json:"api"`
	// Serve is the local URL prefix to serve this resource under.
	Serve string `json:"serve"`
	// Remote is the video directory (videos), the base URL of the
	// video endpoints that the dashboard links to (dashboard)
	// or the serve path of the videos resource to check (check api).
	Remote string `json:"remote"`
	// Extensions restricts a videos resource to files with these extensions.
	// Matching is case insensitive, the leading dot is optional.
	// An empty list allows all regular files.
	Extensions []string `json:"extensions"`
	// Cache is the time in seconds the dashboard keeps a fetched video list.
	// If it is 0, the list is fetched on every page view.
	Cache uint `json:"cache"`
	// Title is the dashboard page title.
	Title string `json:"title"`
	// Chat is the URL of the chat widget embedded next to the player.
	// If it is empty, no widget is shown.
	Chat string `json:"chat"`
}

// Cors configures cross-origin access to the served resources.
type Cors struct {
	// Origins is the list of allowed origins. "*" allows any origin.
	// An empty list disables CORS handling.
	Origins []string `json:"origins"`
}

// Configuration is a representation of the configurable settings.
// These are normally read from a JSON file.
type Configuration struct {
	// Listen is the interface to listen on.
	Listen string `json:"listen"`
	// Timeout is the timeout in seconds for reading request headers
	// and for requests to the video backend made by the dashboard.
	Timeout uint `json:"timeout"`
	// MaxConnections is the maximum total number of concurrent video transfers.
	// If it is 0, no limit will be imposed.
	MaxConnections uint `json:"maxconnections"`
	// RateLimit is the number of requests per second accepted on video resources.
	// If it is 0, requests are not rate limited.
	RateLimit float64 `json:"ratelimit"`
	// RateBurst is the number of requests that may exceed RateLimit in a burst.
	RateBurst int `json:"rateburst"`
	// NoStats disables statistics collection, if set.
	NoStats bool `json:"nostats"`
	// Log is the log file name. Logs go to stdout if it is empty.
	Log string `json:"log"`
	// LogFormat is the format of console logs: json or text.
	// Log files are always written as JSON lines.
	LogFormat string `json:"logformat"`
	// Profile determines if profiling should be enabled.
	// Set to true to turn on the pprof web server and the gops agent.
	Profile bool `json:"profile"`
	// Cors configures cross-origin requests.
	Cors Cors `json:"cors"`
	// Resources is the list of served resources.
	Resources []Resource `json:"resources"`
}

// DefaultConfiguration creates and returns a configuration object
// with default values.
//
// The default resources are only used if the configuration source doesn't
// define any.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Listen:    "localhost:http",
		Timeout:   10,
		RateBurst: 1,
		LogFormat: LogFormatJson,
	}
}

// DefaultResources returns the resources that are served when none are configured:
// the videos in ./source/videos under /videos and a dashboard on /.
func DefaultResources() []Resource {
	return []Resource{
		{
			Type:   ResourceVideos,
			Serve:  "/videos",
			Remote: "source/videos",
		},
		{
			Type:   ResourceDashboard,
			Serve:  "/",
			Remote: "/videos",
			Cache:  60,
		},
	}
}

// LoadConfigurationFile loads a configuration from "filename".
func LoadConfigurationFile(filename string) (*Configuration, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return LoadConfiguration(fd)
}

// LoadConfiguration reads JSON data from the Reader argument and returns a parsed configuration from it.
//
// The parser accepts relaxed JSON (see rjson): keys may be unquoted and commas before a newline are optional.
func LoadConfiguration(reader io.Reader) (*Configuration, error) {
	config := DefaultConfiguration()

	decoder := rjson.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	if len(config.Resources) == 0 {
		config.Resources = DefaultResources()
	}
	for i := range config.Resources {
		resource := &config.Resources[i]
		// normalise extensions to lower case with a leading dot
		for j, ext := range resource.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			resource.Extensions[j] = ext
		}
		// the dashboard is served on a directory-like prefix
		if resource.Type == ResourceDashboard && resource.Serve == "" {
			resource.Serve = "/"
		}
	}

	return config, nil
}

// LoadConfigurationBytes parses the byte array argument as JSON and initialises a configuration from it.
func LoadConfigurationBytes(json []byte) (*Configuration, error) {
	return LoadConfiguration(bytes.NewReader(json))
}

// ApplyEnvironment overrides configuration values from environment variables.
// lookup is normally os.LookupEnv.
func (config *Configuration) ApplyEnvironment(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvListen); ok && v != "" {
		config.Listen = v
	}
	for i := range config.Resources {
		resource := &config.Resources[i]
		switch resource.Type {
		case ResourceVideos:
			if v, ok := lookup(EnvVideoRoot); ok && v != "" {
				resource.Remote = v
			}
		case ResourceDashboard:
			if v, ok := lookup(EnvBackend); ok && v != "" {
				resource.Remote = v
			}
			if v, ok := lookup(EnvChat); ok {
				resource.Chat = v
			}
		}
	}
}

// Validate checks the configuration for errors that would make the server unusable.
func (config *Configuration) Validate() error {
	switch config.LogFormat {
	case "", LogFormatJson, LogFormatText:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.LogFormat)
	}
	if config.Log != "" && config.LogFormat == LogFormatText {
		return fmt.Errorf("%w: log files only support %s", ErrInvalidLogFormat, LogFormatJson)
	}
	for i, resource := range config.Resources {
		if resource.Serve == "" || !strings.HasPrefix(resource.Serve, "/") {
			return fmt.Errorf("%w %d: serve path %q must start with /", ErrInvalidResource, i, resource.Serve)
		}
		switch resource.Type {
		case ResourceVideos:
			if resource.Remote == "" {
				return fmt.Errorf("%w %d: no video directory", ErrInvalidResource, i)
			}
		case ResourceDashboard:
			if resource.Remote == "" {
				return fmt.Errorf("%w %d: no video backend", ErrInvalidResource, i)
			}
		case ResourceApi:
			switch resource.Api {
			case ApiHealth, ApiStatistics, ApiPrometheus:
			case ApiCheck:
				if resource.Remote == "" {
					return fmt.Errorf("%w %d: no videos resource to check", ErrInvalidResource, i)
				}
			default:
				return fmt.Errorf("%w %d: unknown api %q", ErrInvalidResource, i, resource.Api)
			}
		default:
			return fmt.Errorf("%w %d: unknown type %q", ErrInvalidResource, i, resource.Type)
		}
	}
	return nil
}
