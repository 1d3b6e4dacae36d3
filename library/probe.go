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
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/abema/go-mp4"
	"github.com/onitake/videoshelf/util"
	"github.com/sunfish-shogi/bufseekio"
)

const (
	// probeBufferSize is the read buffer of the box parser
	probeBufferSize = 128 * 1024
	// probeHistorySize is the number of buffers kept for backward seeks
	probeHistorySize = 4
	//
	TrackVideo = "video"
	TrackAudio = "audio"
	TrackText  = "text"
	TrackOther = "other"
)

// isoExtensions are the extensions of ISO base media files
var isoExtensions = util.MakeSet(".mp4", ".m4v", ".m4a", ".mov", ".3gp")

// Track is a single media track of a video file.
type Track struct {
	ID        uint32 `json:"id"`
	Kind      string `json:"kind"`
	Codec     string `json:"codec,omitempty"`
	Language  string `json:"language,omitempty"`
	Timescale uint32 `json:"timescale"`
}

// MediaInfo is the container metadata of a video file.
type MediaInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	// Brand is the major brand of the container (isom, mp42, qt ...).
	Brand string `json:"brand,omitempty"`
	// Duration is the presentation duration in seconds.
	Duration float64 `json:"duration"`
	Tracks   []Track `json:"tracks"`
}

// Probe reads the container metadata of an MP4-family file.
//
// Files with other extensions are rejected with ErrUnsupported.
func (lib *Library) Probe(name string) (*MediaInfo, error) {
	video, fd, err := lib.Open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	if !isoExtensions.Contains(strings.ToLower(filepath.Ext(name))) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	info, err := ReadMediaInfo(bufseekio.NewReadSeeker(fd, probeBufferSize, probeHistorySize))
	if err != nil {
		return nil, fmt.Errorf("library: cannot parse %s: %w", name, err)
	}
	info.Name = video.Name
	info.Size = video.Size
	return info, nil
}

// ReadMediaInfo parses the box structure of an ISO base media file.
func ReadMediaInfo(r io.ReadSeeker) (*MediaInfo, error) {
	info := &MediaInfo{
		Tracks: make([]Track, 0),
	}

	ftyp, err := mp4.ExtractBoxWithPayload(r, nil, mp4.BoxPath{mp4.BoxTypeFtyp()})
	if err != nil {
		return nil, err
	}
	if len(ftyp) > 0 {
		info.Brand = strings.TrimSpace(string(ftyp[0].Payload.(*mp4.Ftyp).MajorBrand[:]))
	}

	mvhd, err := mp4.ExtractBoxWithPayload(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil {
		return nil, err
	}
	if len(mvhd) == 0 {
		return nil, fmt.Errorf("no movie header")
	}
	header := mvhd[0].Payload.(*mp4.Mvhd)
	if header.Timescale != 0 {
		duration := uint64(header.DurationV0)
		if header.GetVersion() == 1 {
			duration = header.DurationV1
		}
		info.Duration = float64(duration) / float64(header.Timescale)
	}

	traks, err := mp4.ExtractBox(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak()})
	if err != nil {
		return nil, err
	}
	for _, trak := range traks {
		track, err := readTrack(r, trak)
		if err != nil {
			return nil, err
		}
		info.Tracks = append(info.Tracks, track)
	}

	return info, nil
}

// readTrack extracts the description of a single trak box.
func readTrack(r io.ReadSeeker, trak *mp4.BoxInfo) (Track, error) {
	track := Track{
		Kind: TrackOther,
	}

	tkhd, err := mp4.ExtractBoxWithPayload(r, trak, mp4.BoxPath{mp4.BoxTypeTkhd()})
	if err != nil {
		return track, err
	}
	if len(tkhd) > 0 {
		track.ID = tkhd[0].Payload.(*mp4.Tkhd).TrackID
	}

	mdhd, err := mp4.ExtractBoxWithPayload(r, trak, mp4.BoxPath{mp4.BoxTypeMdia(), mp4.BoxTypeMdhd()})
	if err != nil {
		return track, err
	}
	if len(mdhd) > 0 {
		media := mdhd[0].Payload.(*mp4.Mdhd)
		track.Timescale = media.Timescale
		track.Language = decodeLanguage(media.Language)
	}

	hdlr, err := mp4.ExtractBoxWithPayload(r, trak, mp4.BoxPath{mp4.BoxTypeMdia(), mp4.BoxTypeHdlr()})
	if err != nil {
		return track, err
	}
	if len(hdlr) > 0 {
		track.Kind = trackKind(hdlr[0].Payload.(*mp4.Hdlr).HandlerType)
	}

	entries, err := mp4.ExtractBox(r, trak, mp4.BoxPath{
		mp4.BoxTypeMdia(),
		mp4.BoxTypeMinf(),
		mp4.BoxTypeStbl(),
		mp4.BoxTypeStsd(),
		mp4.BoxTypeAny(),
	})
	if err != nil {
		return track, err
	}
	if len(entries) > 0 {
		track.Codec = entries[0].Type.String()
	}

	return track, nil
}

// trackKind maps a handler type to a track kind.
func trackKind(handler [4]byte) string {
	switch string(handler[:]) {
	case "vide":
		return TrackVideo
	case "soun":
		return TrackAudio
	case "sbtl", "subt", "text":
		return TrackText
	default:
		return TrackOther
	}
}

// decodeLanguage converts a packed ISO-639-2/T code (three 5-bit letters) to a string.
func decodeLanguage(packed [3]byte) string {
	if packed == [3]byte{} {
		return ""
	}
	var b strings.Builder
	for _, c := range packed {
		b.WriteByte(c + 0x60)
	}
	return b.String()
}
