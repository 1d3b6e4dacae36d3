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

package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abema/go-mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boxWriter struct {
	t *testing.T
	w *mp4.Writer
}

func (bw *boxWriter) box(box mp4.IImmutableBox, children ...func()) {
	_, err := bw.w.StartBox(&mp4.BoxInfo{Type: box.GetType()})
	require.NoError(bw.t, err)
	_, err = mp4.Marshal(bw.w, box, mp4.Context{})
	require.NoError(bw.t, err)
	for _, child := range children {
		child()
	}
	_, err = bw.w.EndBox()
	require.NoError(bw.t, err)
}

// writeMovie writes a minimal movie with one video track of 5 seconds.
func writeMovie(t *testing.T, path string) {
	fd, err := os.Create(path)
	require.NoError(t, err)
	defer fd.Close()
	bw := &boxWriter{t: t, w: mp4.NewWriter(fd)}
	bw.box(&mp4.Ftyp{
		MajorBrand:   [4]byte{'i', 's', 'o', 'm'},
		MinorVersion: 512,
	})
	bw.box(&mp4.Moov{}, func() {
		bw.box(&mp4.Mvhd{
			Timescale:   1000,
			DurationV0:  5000,
			Rate:        0x00010000,
			Volume:      0x0100,
			NextTrackID: 2,
		})
		bw.box(&mp4.Trak{}, func() {
			bw.box(&mp4.Tkhd{TrackID: 1})
			bw.box(&mp4.Mdia{}, func() {
				bw.box(&mp4.Mdhd{
					Timescale:  90000,
					DurationV0: 450000,
					Language:   [3]byte{'u' - 0x60, 'n' - 0x60, 'd' - 0x60},
				})
				bw.box(&mp4.Hdlr{
					HandlerType: [4]byte{'v', 'i', 'd', 'e'},
					Name:        "VideoHandler",
				})
			})
		})
	})
}

func TestProbe(t *testing.T) {
	root := t.TempDir()
	writeMovie(t, filepath.Join(root, "lesson.mp4"))
	lib := New(root, nil)

	info, err := lib.Probe("lesson.mp4")
	require.NoError(t, err)
	assert.Equal(t, "lesson.mp4", info.Name)
	assert.Equal(t, "isom", info.Brand)
	assert.InDelta(t, 5.0, info.Duration, 0.001)
	require.Len(t, info.Tracks, 1)
	assert.Equal(t, uint32(1), info.Tracks[0].ID)
	assert.Equal(t, TrackVideo, info.Tracks[0].Kind)
	assert.Equal(t, "und", info.Tracks[0].Language)
	assert.Equal(t, uint32(90000), info.Tracks[0].Timescale)
}

func TestProbeUnsupported(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "clip.webm"), []byte{0x1a, 0x45, 0xdf, 0xa3}, 0644))
	_, err := New(root, nil).Probe("clip.webm")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestProbeNotFound(t *testing.T) {
	_, err := New(t.TempDir(), nil).Probe("absent.mp4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProbeNoMovieHeader(t *testing.T) {
	root := t.TempDir()
	fd, err := os.Create(filepath.Join(root, "empty.mp4"))
	require.NoError(t, err)
	bw := &boxWriter{t: t, w: mp4.NewWriter(fd)}
	bw.box(&mp4.Ftyp{MajorBrand: [4]byte{'m', 'p', '4', '2'}})
	require.NoError(t, fd.Close())

	_, err = New(root, nil).Probe("empty.mp4")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestTrackKind(t *testing.T) {
	assert.Equal(t, TrackAudio, trackKind([4]byte{'s', 'o', 'u', 'n'}))
	assert.Equal(t, TrackText, trackKind([4]byte{'s', 'b', 't', 'l'}))
	assert.Equal(t, TrackOther, trackKind([4]byte{'m', 'e', 't', 'a'}))
	assert.Equal(t, "", decodeLanguage([3]byte{}))
}
