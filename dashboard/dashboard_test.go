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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onitake/videoshelf/util"
	"github.com/stretchr/testify/assert"
)

func render(t *testing.T, source Lister, chat string, target string) *httptest.ResponseRecorder {
	dashboard := NewDashboard(newTestCatalog(t, source, time.Hour), "http://backend.example/videos/", "", chat)
	dashboard.SetLogger(&util.DummyLogger{})
	recorder := httptest.NewRecorder()
	dashboard.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

func TestDashboardDefault(t *testing.T) {
	r := render(t, &mockLister{names: []string{"intro_lesson.mp4", "second part.mp4"}}, "http://chat.example/bot", "/")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.Equal(t, "text/html; charset=utf-8", r.Header().Get("Content-Type"))
	body := r.Body.String()
	assert.Contains(t, body, "<title>eduVideo-LLM Agent</title>")
	assert.Contains(t, body, `<option value="Intro Lesson" selected>Intro Lesson</option>`)
	assert.Contains(t, body, `<option value="Second Part">Second Part</option>`)
	assert.Contains(t, body, "Now playing: Intro Lesson")
	assert.Contains(t, body, `<video controls src="http://backend.example/videos/intro_lesson.mp4">`)
	assert.Contains(t, body, `<iframe src="http://chat.example/bot" allow="microphone">`)
	assert.NotContains(t, body, "No videos available")
}

func TestDashboardSelection(t *testing.T) {
	r := render(t, &mockLister{names: []string{"intro_lesson.mp4", "second part.mp4"}}, "", "/?title=Second+Part")
	body := r.Body.String()
	assert.Contains(t, body, `<option value="Second Part" selected>Second Part</option>`)
	assert.Contains(t, body, `src="http://backend.example/videos/second%20part.mp4"`)
	assert.NotContains(t, body, "<iframe")
}

func TestDashboardUnknownTitle(t *testing.T) {
	r := render(t, &mockLister{names: []string{"a.mp4", "b.mp4"}}, "", "/?title=Nothing")
	assert.Contains(t, r.Body.String(), "Now playing: A")
}

func TestDashboardEmpty(t *testing.T) {
	r := render(t, &mockLister{names: []string{}}, "", "/")
	assert.Equal(t, http.StatusOK, r.Code)
	body := r.Body.String()
	assert.Contains(t, body, "No videos available")
	assert.NotContains(t, body, "<video")
	assert.NotContains(t, body, "<select")
}

func TestDashboardBackendError(t *testing.T) {
	r := render(t, &mockLister{err: errors.New("connection refused")}, "", "/")
	assert.Equal(t, http.StatusOK, r.Code)
	body := r.Body.String()
	assert.Contains(t, body, "Could not fetch the video list from the backend: connection refused")
	assert.Contains(t, body, "No videos available")
}

func TestDashboardEscaping(t *testing.T) {
	r := render(t, &mockLister{names: []string{"<b>bold</b>.mp4"}}, "", "/")
	body := r.Body.String()
	assert.NotContains(t, body, "<b>")
	assert.Contains(t, body, `src="http://backend.example/videos/%3Cb%3Ebold%3C%2Fb%3E.mp4"`)
}

func TestVideoURL(t *testing.T) {
	d00 := NewDashboard(nil, "/videos", "Lessons", "")
	assert.Equal(t, "/videos/a%20b%23c.mp4", d00.VideoURL("a b#c.mp4"))
	assert.Equal(t, "Lessons", d00.title)
}
