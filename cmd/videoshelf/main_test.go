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

package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/onitake/videoshelf/configuration"
	"github.com/onitake/videoshelf/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func videoDir(t *testing.T) string {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "intro_lesson.mp4"), []byte("intro"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "second-part.webm"), []byte("second"), 0644))
	return root
}

func testConfig(t *testing.T, root string, extra ...configuration.Resource) *configuration.Configuration {
	config := configuration.DefaultConfiguration()
	config.Resources = append([]configuration.Resource{
		{Type: configuration.ResourceVideos, Serve: "/videos/", Remote: root},
		{Type: configuration.ResourceDashboard, Serve: "/", Remote: "/videos"},
	}, extra...)
	require.NoError(t, config.Validate())
	return config
}

func newTestHandler(t *testing.T, config *configuration.Configuration) *Handler {
	handler, err := newHandler(config, &metrics.DummyStatistics{})
	require.NoError(t, err)
	t.Cleanup(handler.Shutdown)
	return handler
}

func request(handler http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHandlerResources(t *testing.T) {
	root := videoDir(t)
	handler := newTestHandler(t, testConfig(t, root,
		configuration.Resource{Type: configuration.ResourceApi, Api: configuration.ApiHealth, Serve: "/health"},
		configuration.Resource{Type: configuration.ResourceApi, Api: configuration.ApiStatistics, Serve: "/statistics"},
		configuration.Resource{Type: configuration.ResourceApi, Api: configuration.ApiCheck, Serve: "/check", Remote: "/videos"},
		configuration.Resource{Type: configuration.ResourceApi, Api: configuration.ApiPrometheus, Serve: "/metrics"},
	))

	r := request(handler, "/videos/list")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.JSONEq(t, `["intro_lesson.mp4","second-part.webm"]`, r.Body.String())

	r = request(handler, "/videos/intro_lesson.mp4")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "intro", r.Body.String())

	r = request(handler, "/")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, r.Body.String(), `<option value="Second Part">Second Part</option>`)
	assert.Contains(t, r.Body.String(), `src="/videos/intro_lesson.mp4"`)

	r = request(handler, "/health")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, r.Body.String(), `"status":"ok"`)

	r = request(handler, "/statistics")
	assert.Equal(t, http.StatusOK, r.Code)

	r = request(handler, "/check")
	assert.Equal(t, http.StatusOK, r.Code)

	r = request(handler, "/metrics")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Contains(t, r.Body.String(), "streaming_requests")

	require.NoError(t, os.RemoveAll(root))
	r = request(handler, "/check")
	assert.Equal(t, http.StatusNotFound, r.Code)
	r = request(handler, "/videos/list")
	assert.Equal(t, http.StatusInternalServerError, r.Code)
}

func TestHandlerRemoteDashboard(t *testing.T) {
	backend := httptest.NewServer(newTestHandler(t, testConfig(t, videoDir(t))))
	defer backend.Close()

	config := configuration.DefaultConfiguration()
	config.Resources = []configuration.Resource{
		{Type: configuration.ResourceDashboard, Serve: "/", Remote: backend.URL + "/videos", Title: "Lessons", Chat: "http://chat.example/bot"},
	}
	handler := newTestHandler(t, config)
	r := request(handler, "/?title=Second+Part")
	assert.Equal(t, http.StatusOK, r.Code)
	body := r.Body.String()
	assert.Contains(t, body, "<title>Lessons</title>")
	assert.Contains(t, body, `src="`+backend.URL+`/videos/second-part.webm"`)
	assert.Contains(t, body, `allow="microphone"`)
}

func TestHandlerInvalid(t *testing.T) {
	c00 := configuration.DefaultConfiguration()
	c00.Resources = []configuration.Resource{
		{Type: configuration.ResourceDashboard, Serve: "/", Remote: "/nowhere"},
	}
	_, err := newHandler(c00, &metrics.DummyStatistics{})
	assert.ErrorIs(t, err, configuration.ErrInvalidResource)

	c01 := configuration.DefaultConfiguration()
	c01.Resources = []configuration.Resource{
		{Type: configuration.ResourceApi, Api: configuration.ApiCheck, Serve: "/check", Remote: "/nowhere"},
	}
	_, err = newHandler(c01, &metrics.DummyStatistics{})
	assert.ErrorIs(t, err, configuration.ErrInvalidResource)

	c02 := configuration.DefaultConfiguration()
	c02.Resources = []configuration.Resource{
		{Type: configuration.ResourceDashboard, Serve: "/", Remote: "http://"},
	}
	_, err = newHandler(c02, &metrics.DummyStatistics{})
	assert.Error(t, err)
}

func TestHandlerCors(t *testing.T) {
	config := testConfig(t, videoDir(t))
	config.Cors.Origins = []string{"http://front.example"}
	handler := newTestHandler(t, config)

	r := request(handler, "/videos/list", "Origin", "http://front.example")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "http://front.example", r.Header().Get("Access-Control-Allow-Origin"))

	r = request(handler, "/videos/list", "Origin", "http://other.example")
	assert.Empty(t, r.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandlerRateLimit(t *testing.T) {
	config := testConfig(t, videoDir(t))
	config.RateLimit = 0.001
	config.RateBurst = 1
	handler := newTestHandler(t, config)

	assert.Equal(t, http.StatusOK, request(handler, "/videos/list").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(handler, "/videos/list").Code)
	// the dashboard reads the library directly and isn't limited
	assert.Equal(t, http.StatusOK, request(handler, "/").Code)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	config, err := loadConfig(filepath.Join(dir, "absent.json"), false)
	require.NoError(t, err)
	assert.Equal(t, configuration.DefaultResources(), config.Resources)

	_, err = loadConfig(filepath.Join(dir, "absent.json"), true)
	assert.Error(t, err)

	file := filepath.Join(dir, "videoshelf.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"listen": ":8080", "resources": [{"type": "videos", "serve": "/videos", "remote": "/srv/videos"}]}`), 0644))
	t.Setenv(configuration.EnvVideoRoot, "/data/videos")
	config, err = loadConfig(file, true)
	require.NoError(t, err)
	assert.Equal(t, ":8080", config.Listen)
	assert.Equal(t, "/data/videos", config.Resources[0].Remote)

	require.NoError(t, os.WriteFile(file, []byte(`{"resources": [{"type": "stream", "serve": "/x"}]}`), 0644))
	_, err = loadConfig(file, true)
	assert.ErrorIs(t, err, configuration.ErrInvalidResource)
}

func TestCleanPrefix(t *testing.T) {
	assert.Equal(t, "/", cleanPrefix("/"))
	assert.Equal(t, "/", cleanPrefix("//"))
	assert.Equal(t, "/videos", cleanPrefix("/videos/"))
	assert.Equal(t, "/videos", cleanPrefix("/videos"))
}
