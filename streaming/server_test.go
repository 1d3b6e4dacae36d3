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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abema/go-mp4"
	"github.com/go-chi/chi/v5"
	"github.com/onitake/videoshelf/library"
	"github.com/onitake/videoshelf/metrics"
	"github.com/onitake/videoshelf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMovie writes a movie header of 2 seconds without any tracks.
func writeMovie(t *testing.T, path string) {
	fd, err := os.Create(path)
	require.NoError(t, err)
	defer fd.Close()
	w := mp4.NewWriter(fd)
	box := func(b mp4.IImmutableBox, children ...func()) {
		_, err := w.StartBox(&mp4.BoxInfo{Type: b.GetType()})
		require.NoError(t, err)
		_, err = mp4.Marshal(w, b, mp4.Context{})
		require.NoError(t, err)
		for _, child := range children {
			child()
		}
		_, err = w.EndBox()
		require.NoError(t, err)
	}
	box(&mp4.Ftyp{MajorBrand: [4]byte{'m', 'p', '4', '2'}})
	box(&mp4.Moov{}, func() {
		box(&mp4.Mvhd{Timescale: 1000, DurationV0: 2000, Rate: 0x00010000, NextTrackID: 1})
	})
}

func newTestServer(t *testing.T, files map[string]string, maxconns uint) (*VideoServer, string) {
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
	}
	server := NewVideoServer("/videos", library.New(root, nil), NewAccessController(maxconns))
	server.SetLogger(&util.DummyLogger{})
	server.auth.SetLogger(&util.DummyLogger{})
	return server, root
}

func get(server http.Handler, method, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func detail(t *testing.T, recorder *httptest.ResponseRecorder) string {
	var body errorDetail
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body.Detail
}

func TestServeList(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"b.mp4": "b", "a.mp4": "a"}, 0)
	r := get(server, http.MethodGet, "/list")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "application/json", r.Header().Get("Content-Type"))
	var names []string
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &names))
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, names)
}

func TestServeListEmpty(t *testing.T) {
	server, _ := newTestServer(t, nil, 0)
	r := get(server, http.MethodGet, "/list")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.JSONEq(t, "[]", r.Body.String())
}

func TestServeListRootMissing(t *testing.T) {
	server, root := newTestServer(t, nil, 0)
	require.NoError(t, os.Remove(root))
	r := get(server, http.MethodGet, "/list")
	assert.Equal(t, http.StatusInternalServerError, r.Code)
	assert.Equal(t, "Video directory not found on server", detail(t, r))
}

func TestServeVideo(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"intro lesson.mp4": "0123456789"}, 0)
	r := get(server, http.MethodGet, "/intro%20lesson.mp4")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "0123456789", r.Body.String())
	assert.Equal(t, "video/mp4", r.Header().Get("Content-Type"))
	assert.Equal(t, "10", r.Header().Get("Content-Length"))
	assert.Equal(t, "none", r.Header().Get("Accept-Ranges"))
	assert.NotEmpty(t, r.Header().Get("Last-Modified"))
}

func TestServeVideoHead(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"a.webm": "webm data"}, 0)
	r := get(server, http.MethodHead, "/a.webm")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "9", r.Header().Get("Content-Length"))
	assert.Equal(t, "video/webm", r.Header().Get("Content-Type"))
	assert.Zero(t, r.Body.Len())
}

func TestServeVideoNotFound(t *testing.T) {
	server, root := newTestServer(t, map[string]string{"a.mp4": "a"}, 0)
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir.mp4"), 0755))

	r := get(server, http.MethodGet, "/missing.mp4")
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "Video 'missing.mp4' not found", detail(t, r))

	r = get(server, http.MethodGet, "/dir.mp4")
	assert.Equal(t, http.StatusNotFound, r.Code)

	// an escaped separator must not leave the library
	r = get(server, http.MethodGet, "/..%2Fa.mp4")
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestServeVideoRootMissing(t *testing.T) {
	server, root := newTestServer(t, nil, 0)
	require.NoError(t, os.Remove(root))
	r := get(server, http.MethodGet, "/a.mp4")
	assert.Equal(t, http.StatusInternalServerError, r.Code)
}

func TestServeVideoBusy(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"a.mp4": "a"}, 1)
	require.True(t, server.auth.Accept("other"))
	r := get(server, http.MethodGet, "/a.mp4")
	assert.Equal(t, http.StatusServiceUnavailable, r.Code)

	// headers don't occupy a transfer slot
	r = get(server, http.MethodHead, "/a.mp4")
	assert.Equal(t, http.StatusOK, r.Code)

	server.auth.Release()
	r = get(server, http.MethodGet, "/a.mp4")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, uint(0), server.auth.Connections())
}

func TestServeListShadowsFile(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"list": "not json"}, 0)
	r := get(server, http.MethodGet, "/list")
	assert.JSONEq(t, `["list"]`, r.Body.String())
}

func TestServeInfo(t *testing.T) {
	server, root := newTestServer(t, map[string]string{"clip.webm": "webm", "broken.mp4": "garbage"}, 0)
	writeMovie(t, filepath.Join(root, "movie.mp4"))

	r := get(server, http.MethodGet, "/movie.mp4/info")
	assert.Equal(t, http.StatusOK, r.Code)
	var info library.MediaInfo
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &info))
	assert.Equal(t, "movie.mp4", info.Name)
	assert.InDelta(t, 2.0, info.Duration, 0.001)

	r = get(server, http.MethodGet, "/clip.webm/info")
	assert.Equal(t, http.StatusUnsupportedMediaType, r.Code)

	r = get(server, http.MethodGet, "/broken.mp4/info")
	assert.Equal(t, http.StatusUnprocessableEntity, r.Code)

	r = get(server, http.MethodGet, "/missing.mp4/info")
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestServeStatistics(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"a.mp4": "abcd"}, 0)
	stats := metrics.NewStatistics(0)
	server.SetCollector(stats.RegisterLibrary("/videos"))
	stats.Start()
	defer stats.Stop()

	get(server, http.MethodGet, "/a.mp4")
	get(server, http.MethodGet, "/b.mp4")

	require.Eventually(t, func() bool {
		s := stats.GetLibraryStatistics("/videos")
		return s != nil && s.TotalBytesSent == 4 && s.TotalErrors == 1
	}, 5*time.Second, 10*time.Millisecond)
	s := stats.GetLibraryStatistics("/videos")
	assert.Equal(t, uint64(1), s.TotalRequests)
	assert.Equal(t, int64(0), s.Connections)
}

func TestMountedRoutes(t *testing.T) {
	server, _ := newTestServer(t, map[string]string{"a.mp4": "abc"}, 0)
	router := chi.NewRouter()
	router.Route("/videos", server.Routes)

	r := get(router, http.MethodGet, "/videos/a.mp4")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "abc", r.Body.String())

	r = get(router, http.MethodGet, "/videos/list")
	assert.JSONEq(t, `["a.mp4"]`, r.Body.String())
}
