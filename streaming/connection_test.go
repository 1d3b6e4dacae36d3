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
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onitake/videoshelf/library"
	"github.com/onitake/videoshelf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCollector struct {
	bytes uint64
}

func (c *countingCollector) ConnectionAdded()                      {}
func (c *countingCollector) ConnectionRemoved()                    {}
func (c *countingCollector) RequestServed()                        {}
func (c *countingCollector) RequestFailed()                        {}
func (c *countingCollector) BytesSent(count uint64)                { c.bytes += count }
func (c *countingCollector) StreamDuration(duration time.Duration) {}

// failingWriter accepts the header but refuses all data.
type failingWriter struct {
	header http.Header
	status int
}

func (w *failingWriter) Header() http.Header {
	return w.header
}

func (w *failingWriter) WriteHeader(status int) {
	w.status = status
}

func (w *failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func testVideo(size int64) *library.Video {
	return &library.Video{
		Name:        "test.mp4",
		Size:        size,
		ModTime:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		ContentType: "video/mp4",
	}
}

func TestConnectionServe(t *testing.T) {
	data := bytes.Repeat([]byte{0x47}, 3*connectionChunkSize+17)
	r00 := httptest.NewRecorder()
	c00 := NewConnection(r00, "t00")
	c00.SetLogger(&util.DummyLogger{})
	s00 := &countingCollector{}
	c00.SetCollector(s00)

	sent, err := c00.Serve(context.Background(), testVideo(int64(len(data))), bytes.NewReader(data), false)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), sent)
	assert.Equal(t, uint64(len(data)), s00.bytes)
	assert.Equal(t, http.StatusOK, r00.Code)
	assert.Equal(t, data, r00.Body.Bytes())
	assert.Equal(t, "Fri, 01 Mar 2024 12:00:00 GMT", r00.Header().Get("Last-Modified"))
}

func TestConnectionHead(t *testing.T) {
	r01 := httptest.NewRecorder()
	c01 := NewConnection(r01, "t01")
	c01.SetLogger(&util.DummyLogger{})
	sent, err := c01.Serve(context.Background(), testVideo(4), bytes.NewReader([]byte("data")), true)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, "4", r01.Header().Get("Content-Length"))
	assert.Zero(t, r01.Body.Len())
}

func TestConnectionCancelled(t *testing.T) {
	r02 := httptest.NewRecorder()
	c02 := NewConnection(r02, "t02")
	c02.SetLogger(&util.DummyLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent, err := c02.Serve(ctx, testVideo(4), bytes.NewReader([]byte("data")), false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sent)
	// the header was already sent
	assert.Equal(t, http.StatusOK, r02.Code)
}

func TestConnectionWriteError(t *testing.T) {
	w03 := &failingWriter{header: make(http.Header)}
	c03 := NewConnection(w03, "t03")
	c03.SetLogger(&util.DummyLogger{})
	_, err := c03.Serve(context.Background(), testVideo(4), bytes.NewReader([]byte("data")), false)
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, w03.status)
}

func TestServeDetail(t *testing.T) {
	r04 := httptest.NewRecorder()
	serveDetail(r04, http.StatusNotFound, "Video 'x' not found")
	assert.Equal(t, http.StatusNotFound, r04.Code)
	assert.Equal(t, "application/json", r04.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"detail":"Video 'x' not found"}`, r04.Body.String())
}
