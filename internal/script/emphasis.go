/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// Emphasis markers. Triple asterisks are tried before double and single so a
// "***" run is never split; the open checks for Bold and Italic carry the
// "not followed by another asterisk" lookahead.
type marker struct {
	open, close string
}

var markers = [numKinds]marker{
	BoldItalic: {"***", "***"},
	Bold:       {"**", "**"},
	Italic:     {"*", "*"},
	Underline:  {"_", "_"},
	Centered:   {">", "<"},
}

// inlineKinds is the emphasis set tried inside Action, Dialogue and raw text.
var inlineKinds = []Kind{BoldItalic, Bold, Italic, Underline}

// emphasisChildren is the legal child set per emphasis kind: every inline
// kind except the parent itself. Self-nesting is only reachable through a
// different kind (Bold > Italic > Bold).
var emphasisChildren [numKinds][]Kind

func init() {
	for _, parent := range append(append([]Kind(nil), inlineKinds...), Centered) {
		for _, child := range inlineKinds {
			if child != parent {
				emphasisChildren[parent] = append(emphasisChildren[parent], child)
			}
		}
	}
}

// EmphasisChildren returns the kinds an emphasis span of kind k may contain directly.
func EmphasisChildren(k Kind) []Kind {
	return append([]Kind(nil), emphasisChildren[k]...)
}

func isEscapable(c byte) bool {
	switch c {
	case '*', '_', '>', '<', '\\':
		return true
	}
	return false
}

func opensAt(k Kind, text string, i, limit int) bool {
	m := markers[k]
	if i+len(m.open) > limit || text[i:i+len(m.open)] != m.open {
		return false
	}
	switch k {
	case Bold, Italic:
		j := i + len(m.open)
		return j >= limit || text[j] != '*'
	}
	return true
}

func closesAt(k Kind, text string, i, limit int) bool {
	c := markers[k].close
	return i+len(c) <= limit && text[i:i+len(c)] == c
}

type memoKey struct {
	kind Kind
	pos  int
}

type memoEntry struct {
	span Span
	ok   bool
}

// inline scans one line for emphasis. Spans never cross the line end, every
// (kind, offset) attempt is memoized, and an attempt whose closing marker
// does not occur later on the line is rejected without scanning.
//
// The interior scan of a kind k only depends on k and the offset it has
// reached, so closes records, per (k, offset), where that scan ends. Scans
// from different openers share it, which keeps a line linear even when most
// openers fail.
type inline struct {
	lx        *Lexer
	li        int
	limit     int
	lastClose [numKinds]int
	memo      map[memoKey]memoEntry
	closes    map[memoKey]int
}

func (l *Lexer) inlineFor(li int) *inline {
	if l.inl != nil && l.inl.li == li {
		return l.inl
	}
	ln := l.src.lines[li]
	in := &inline{lx: l, li: li, limit: ln.end, memo: make(map[memoKey]memoEntry), closes: make(map[memoKey]int)}
	text := l.src.text[ln.start:ln.end]
	for k := range in.lastClose {
		in.lastClose[k] = -1
		if c := markers[k].close; c != "" {
			if j := strings.LastIndex(text, c); j >= 0 {
				in.lastClose[k] = ln.start + j
			}
		}
	}
	l.inl = in
	return in
}

// scan returns the emphasis spans found in [from, line end). Centered is only
// tried at the first non-blank byte when centered is set.
func (in *inline) scan(from int, centered bool) []Span {
	text := in.lx.src.text
	var out []Span
	i := from
	if centered {
		j := i + indentWidth(text[i:in.limit])
		if opensAt(Centered, text, j, in.limit) {
			if sp, ok := in.parse(Centered, j); ok {
				out = append(out, sp)
				i = sp.End
			}
		}
	}
	for i < in.limit {
		if text[i] == '\\' && i+1 < in.limit && isEscapable(text[i+1]) {
			i += 2
			continue
		}
		if sp, ok := in.at(i, inlineKinds); ok {
			out = append(out, sp)
			i = sp.End
			continue
		}
		i++
	}
	return out
}

// at tries the given kinds at offset i and reports failed openers as
// unterminated.
func (in *inline) at(i int, kinds []Kind) (Span, bool) {
	text := in.lx.src.text
	for _, k := range kinds {
		if !opensAt(k, text, i, in.limit) {
			continue
		}
		if sp, ok := in.parse(k, i); ok {
			return sp, true
		}
		in.lx.diag(UnterminatedSpan, k, i, "unterminated "+k.String()+" marker "+markers[k].open)
		// a failed "***" may still open a shorter marker
	}
	return Span{}, false
}

func (in *inline) parse(k Kind, pos int) (Span, bool) {
	key := memoKey{k, pos}
	if e, ok := in.memo[key]; ok {
		return e.span, e.ok
	}
	sp, ok := in.match(k, pos)
	in.memo[key] = memoEntry{sp, ok}
	return sp, ok
}

// step advances the interior scan of a k span by one unit from i: an escape,
// a nested span of a legal child kind, or a single byte. closed reports that
// the marker closing k starts at i; it is only checked when canClose is set.
// A nested span is returned as child, which is zero otherwise.
func (in *inline) step(k Kind, i int, canClose bool) (next int, child Span, closed bool) {
	text := in.lx.src.text
	if text[i] == '\\' && i+1 < in.limit && isEscapable(text[i+1]) {
		return i + 2, Span{}, false
	}
	for _, ck := range emphasisChildren[k] {
		if !opensAt(ck, text, i, in.limit) {
			continue
		}
		if sp, ok := in.parse(ck, i); ok {
			return sp.End, sp, false
		}
	}
	if canClose && closesAt(k, text, i, in.limit) {
		return i, Span{}, true
	}
	return i + 1, Span{}, false
}

// closeFrom returns the offset of the marker that ends the interior scan of
// a k span once it has reached i, or -1 when the line ends first.
func (in *inline) closeFrom(k Kind, i int) int {
	var path []int
	res := -1
	for i < in.limit {
		if c, ok := in.closes[memoKey{k, i}]; ok {
			res = c
			break
		}
		path = append(path, i)
		next, _, closed := in.step(k, i, true)
		if closed {
			res = i
			break
		}
		i = next
	}
	for _, p := range path {
		in.closes[memoKey{k, p}] = res
	}
	return res
}

func (in *inline) match(k Kind, pos int) (Span, bool) {
	text := in.lx.src.text
	m := markers[k]
	first := pos + len(m.open)
	if first >= in.limit || in.lastClose[k] < first+1 {
		return Span{}, false
	}
	// the closing marker may not directly follow the opening one
	i, child, _ := in.step(k, first, false)
	end := in.closeFrom(k, i)
	if end < 0 {
		return Span{}, false
	}
	var children []Span
	for {
		if child.End > 0 {
			children = append(children, child)
		}
		if i >= end {
			break
		}
		i, child, _ = in.step(k, i, false)
	}
	stop := end + len(m.close)
	return Span{Kind: k, Start: pos, End: stop, Text: text[pos:stop], Children: children}, true
}
