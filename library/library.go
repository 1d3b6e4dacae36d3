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

// Package library gives access to the video files in a single directory.
//
// Only regular files directly inside the directory are part of a library.
// Names are plain file names, never paths: anything that would leave the
// directory is rejected before the file system is touched.
package library

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/onitake/videoshelf/util"
)

const (
	// defaultMime is sent for files with an unknown extension
	defaultMime = "application/octet-stream"
)

var (
	// ErrRootMissing is returned when the library directory does not exist or is not a directory.
	ErrRootMissing = errors.New("library: video directory not found")
	// ErrNotFound is returned when a name does not refer to a regular file in the library.
	ErrNotFound = errors.New("library: video not found")
	// ErrInvalidName is returned for names that are not plain file names.
	ErrInvalidName = errors.New("library: invalid video name")
	// ErrUnsupported is returned when probing a file of a type that cannot be parsed.
	ErrUnsupported = errors.New("library: unsupported container format")
)

// videoMimeTypes complements the system MIME table, which is often missing video types.
var videoMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".ts":   "video/mp2t",
	".ogv":  "video/ogg",
}

// Video describes a single file in a library.
type Video struct {
	// Name is the file name, relative to the library root.
	Name string
	// Path is the full path of the file.
	Path string
	// Size is the file size in bytes.
	Size int64
	// ModTime is the last modification time.
	ModTime time.Time
	// ContentType is the MIME type derived from the file extension.
	ContentType string
}

// Library is a directory of video files.
type Library struct {
	root       string
	extensions util.Set[string]
}

// New creates a library for the directory root.
//
// If extensions is not empty, only files with one of these extensions
// (case insensitive, with leading dot) are part of the library.
// The directory is not checked here, so a library can be created before the
// directory is mounted.
func New(root string, extensions []string) *Library {
	lib := &Library{
		root: root,
	}
	if len(extensions) > 0 {
		lib.extensions = util.MakeSet[string]()
		for _, ext := range extensions {
			lib.extensions.Add(strings.ToLower(ext))
		}
	}
	return lib
}

// Root returns the library directory.
func (lib *Library) Root() string {
	return lib.root
}

// ContentType returns the MIME type for a file name, based on its extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return defaultMime
	}
	if mtype, ok := videoMimeTypes[ext]; ok {
		return mtype
	}
	if mtype := mime.TypeByExtension(ext); mtype != "" {
		return mtype
	}
	return defaultMime
}

// checkRoot verifies that the library directory exists.
func (lib *Library) checkRoot() error {
	info, err := os.Stat(lib.root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootMissing, lib.root)
	}
	return nil
}

// Connected reports whether the library directory is currently accessible.
func (lib *Library) Connected() bool {
	return lib.checkRoot() == nil
}

// accepts tells if the extension filter lets a name pass.
func (lib *Library) accepts(name string) bool {
	if lib.extensions == nil {
		return true
	}
	return lib.extensions.Contains(strings.ToLower(filepath.Ext(name)))
}

// List returns the names of all regular files in the library, sorted lexically.
//
// Symbolic links are followed, so a link to a regular file is listed.
// Directories and special files are skipped. An empty library yields an empty,
// non-nil slice.
func (lib *Library) List() ([]string, error) {
	if err := lib.checkRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(lib.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootMissing, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !validName(name) || !lib.accepts(name) {
			continue
		}
		mode := entry.Type()
		if mode&os.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(lib.root, name))
			if err != nil {
				// dangling link
				continue
			}
			mode = info.Mode()
		}
		if mode.IsRegular() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// validName checks that name is a plain file name.
// Only / and the platform separator count as separators, so a backslash
// is an ordinary character outside Windows.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, "/\x00"+string(os.PathSeparator)) {
		return false
	}
	return filepath.Base(name) == name
}

// Stat resolves a name and returns its description without opening it.
func (lib *Library) Stat(name string) (*Video, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := lib.checkRoot(); err != nil {
		return nil, err
	}
	if !lib.accepts(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	path := filepath.Join(lib.root, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &Video{
		Name:        name,
		Path:        path,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: ContentType(name),
	}, nil
}

// Open resolves a name and opens the file for reading.
// The caller must close the returned file.
func (lib *Library) Open(name string) (*Video, *os.File, error) {
	video, err := lib.Stat(name)
	if err != nil {
		return nil, nil, err
	}
	fd, err := os.Open(video.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, nil, err
	}
	// the file may have been replaced between stat and open
	info, err := fd.Stat()
	if err != nil || !info.Mode().IsRegular() {
		fd.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	video.Size = info.Size()
	video.ModTime = info.ModTime()
	return video, fd, nil
}
