/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// line is one '\n'-separated segment of the input. end excludes the separator.
// A trailing newline yields a final empty line, so "A\n" has two lines.
type line struct {
	start, end int
	blank      bool
}

type source struct {
	text         string
	lines        []line
	commentClose int // start of the last "*/", or -1
}

func newSource(text string) *source {
	s := &source{text: text, lines: make([]line, 0, strings.Count(text, "\n")+1)}
	start := 0
	for {
		i := strings.IndexByte(text[start:], '\n')
		end := len(text)
		if i >= 0 {
			end = start + i
		}
		s.lines = append(s.lines, line{start: start, end: end, blank: strings.TrimSpace(text[start:end]) == ""})
		if i < 0 {
			break
		}
		start = end + 1
	}
	s.commentClose = strings.LastIndex(text, "*/")
	return s
}

func (s *source) n() int { return len(s.lines) }

func (s *source) lineText(i int) string {
	ln := s.lines[i]
	return s.text[ln.start:ln.end]
}

// blank treats positions outside the document as blank lines, so the first
// line of a document has a blank line "before" it and the last one "after".
func (s *source) blank(i int) bool {
	if i < 0 || i >= len(s.lines) {
		return true
	}
	return s.lines[i].blank
}

// lineOf returns the index of the line containing offset.
func (s *source) lineOf(offset int) int {
	i := sort.Search(len(s.lines), func(i int) bool { return s.lines[i].end >= offset })
	if i >= len(s.lines) {
		i = len(s.lines) - 1
	}
	return i
}

// position converts a byte offset into 1-based line and column.
func (s *source) position(offset int) (int, int) {
	i := s.lineOf(offset)
	return i + 1, offset - s.lines[i].start + 1
}

// paragraphEnd returns the last non-blank line of the run starting at i.
func (s *source) paragraphEnd(i int) int {
	for i+1 < len(s.lines) && !s.lines[i+1].blank {
		i++
	}
	return i
}

// nextNonBlank returns the first non-blank line at or after i, or n().
func (s *source) nextNonBlank(i int) int {
	for i < len(s.lines) && s.lines[i].blank {
		i++
	}
	return i
}

func indentWidth(text string) int {
	i := 0
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i
}

func hasLower(text string) bool {
	for _, r := range text {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

// nextRune returns the offset just past the rune at i.
func nextRune(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}
	if text[i] < utf8.RuneSelf {
		return i + 1
	}
	_, w := utf8.DecodeRuneInString(text[i:])
	return i + w
}
