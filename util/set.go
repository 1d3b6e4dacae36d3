/* Copyright (c) 2017-2026 Gregor Riepl
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

package util

// Set is a set type, based on a map where keys represent the values.
//
// Map semantics work as well:
//   set := make(Set[string])
//   set["value"] = struct{}{}
//   delete(set, "value")
//   _, ok := set["value"]
type Set[T comparable] map[T]struct{}

// MakeSet creates a new set containing values.
func MakeSet[T comparable](values ...T) Set[T] {
	set := make(Set[T], len(values))
	for _, value := range values {
		set.Add(value)
	}
	return set
}

// Add adds a value to the set.
func (set Set[T]) Add(value T) {
	set[value] = struct{}{}
}

// Remove removes a value from the set.
func (set Set[T]) Remove(value T) {
	delete(set, value)
}

// Contains tests if a value is in the set and returns true if this is the case.
// A nil set contains nothing.
func (set Set[T]) Contains(value T) bool {
	_, ok := set[value]
	return ok
}
