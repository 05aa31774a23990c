// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package facts

// FQNStack tracks the enclosing canonical names during a walk.
// The zero value is an empty stack.
type FQNStack struct {
	names []string
}

func (s *FQNStack) Push(fqn string) {
	s.names = append(s.names, fqn)
}

// Pop removes and returns the top name, or "" when empty.
func (s *FQNStack) Pop() string {
	if len(s.names) == 0 {
		return ""
	}
	top := s.names[len(s.names)-1]
	s.names = s.names[:len(s.names)-1]
	return top
}

// Peek returns the top name, or "" when empty.
func (s *FQNStack) Peek() string {
	if len(s.names) == 0 {
		return ""
	}
	return s.names[len(s.names)-1]
}

func (s *FQNStack) Len() int {
	return len(s.names)
}
