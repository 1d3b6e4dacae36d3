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
	"strings"
	"unicode"
)

// Option is a selectable video.
type Option struct {
	Title    string
	Filename string
}

// stripExtension removes the last extension from a file name.
// Leading dots don't start an extension, so ".hidden" stays as it is.
func stripExtension(name string) string {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || strings.TrimLeft(name[:dot], ".") == "" {
		return name
	}
	return name[:dot]
}

// isCased reports if a rune has distinct upper and lower case forms.
func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}

// titleCase converts the first cased letter of every word to title case
// and all other cased letters to lower case.
// Every rune without case, including digits and apostrophes, ends a word.
func titleCase(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	previous := false
	for _, r := range s {
		cased := isCased(r)
		switch {
		case cased && previous:
			builder.WriteRune(unicode.ToLower(r))
		case cased:
			builder.WriteRune(unicode.ToTitle(r))
		default:
			builder.WriteRune(r)
		}
		previous = cased
	}
	return builder.String()
}

// TitleFromFilename derives a display title from a video file name.
//
// The extension is removed, underscores and hyphens become spaces
// and the result is title-cased: "intro_to-GO.mp4" becomes "Intro To Go".
func TitleFromFilename(name string) string {
	base := stripExtension(name)
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return titleCase(base)
}

// BuildOptions maps file names to selectable titles, in list order.
//
// If several files produce the same title, the title stays at the position
// of its first occurrence and selects the file that came last.
func BuildOptions(names []string) []Option {
	options := make([]Option, 0, len(names))
	index := make(map[string]int, len(names))
	for _, name := range names {
		title := TitleFromFilename(name)
		if i, ok := index[title]; ok {
			options[i].Filename = name
			continue
		}
		index[title] = len(options)
		options = append(options, Option{Title: title, Filename: name})
	}
	return options
}

// Find returns the option with the given title.
// The first option is returned if there is no such title, nil if options is empty.
func Find(options []Option, title string) *Option {
	if len(options) == 0 {
		return nil
	}
	for i := range options {
		if options[i].Title == title {
			return &options[i]
		}
	}
	return &options[0]
}
