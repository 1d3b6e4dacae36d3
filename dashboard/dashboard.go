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

package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/onitake/videoshelf/util"
)

const (
	// DefaultTitle is the page title if none is configured.
	DefaultTitle = "eduVideo-LLM Agent"
)

//go:embed templates/index.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

// page is the data passed to the page template.
type page struct {
	Title    string
	Error    string
	Options  []Option
	Selected *Option
	VideoURL string
	Chat     string
}

// Dashboard serves the video selection page.
type Dashboard struct {
	// catalog provides the video list
	catalog *Catalog
	// backend is the base URL of the video endpoints, as seen by the browser
	backend string
	// title is the page title
	title string
	// chat is the URL of the chat widget, or empty
	chat string
	// logger is the kv logger for this dashboard
	logger util.Logger
}

// NewDashboard creates a dashboard page handler.
//
// backend is the base URL the browser uses to retrieve videos, either absolute
// or a path on the same server. If title is empty, DefaultTitle is used.
// If chat is empty, no chat widget is embedded.
func NewDashboard(catalog *Catalog, backend string, title string, chat string) *Dashboard {
	if title == "" {
		title = DefaultTitle
	}
	return &Dashboard{
		catalog: catalog,
		backend: strings.TrimRight(backend, "/"),
		title:   title,
		chat:    chat,
		logger:  logger,
	}
}

// SetLogger assigns a logger.
func (dashboard *Dashboard) SetLogger(logger util.Logger) {
	dashboard.logger = logger
}

// VideoURL returns the URL of a video file on the backend.
func (dashboard *Dashboard) VideoURL(filename string) string {
	return dashboard.backend + "/" + url.PathEscape(filename)
}

// ServeHTTP renders the page.
// The query parameter "title" selects the video to play, the first one is played by default.
func (dashboard *Dashboard) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	data := page{
		Title: dashboard.title,
		Chat:  dashboard.chat,
	}
	names, err := dashboard.catalog.Videos()
	if err != nil {
		data.Error = err.Error()
	}
	data.Options = BuildOptions(names)
	data.Selected = Find(data.Options, request.URL.Query().Get("title"))
	if data.Selected != nil {
		data.VideoURL = dashboard.VideoURL(data.Selected.Filename)
	}

	var body bytes.Buffer
	if err := pageTemplate.Execute(&body, &data); err != nil {
		dashboard.logger.Logkv(
			"event", eventDashboardError,
			"error", errorDashboardTemplate,
			"message", fmt.Sprintf("Cannot render page: %v", err),
		)
		http.Error(writer, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	dashboard.logger.Logkv(
		"event", eventDashboardRender,
		"remote", request.RemoteAddr,
		"videos", len(data.Options),
		"message", fmt.Sprintf("Rendered dashboard with %d videos for %s", len(data.Options), request.RemoteAddr),
	)
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.WriteHeader(http.StatusOK)
	writer.Write(body.Bytes())
}
