/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// group is a built dialogue block together with the last line it covers.
type group struct {
	line int
	last int
	span Span
}

// buildGroup absorbs the lines after a cue up to the next blank line:
// lines opening with '(' are parentheticals up to the matching ')', every
// other run of lines is dialogue. The result is cached for the cue line
// because the dual matcher and the plain block matcher both ask for it.
func (l *Lexer) buildGroup(c cue) group {
	if l.grp != nil && l.grp.line == c.line {
		return *l.grp
	}
	src := l.src
	last := src.paragraphEnd(c.line)
	start := src.lines[c.line].start
	blockEnd := src.lines[last].end
	parenClose := strings.LastIndexByte(src.text[start:blockEnd], ')')
	if parenClose >= 0 {
		parenClose += start
	}

	children := []Span{l.cueSpan(c)}
	for k := c.line + 1; k <= last; {
		ln := src.lines[k]
		open := ln.start + indentWidth(src.text[ln.start:ln.end])
		if src.text[open] == '(' {
			if parenClose > open {
				end := open + strings.IndexByte(src.text[open:blockEnd], ')') + 1
				children = append(children, Span{Kind: Parenthetical, Start: ln.start, End: end, Text: src.text[ln.start:end]})
				closeLine := src.lineOf(end - 1)
				if rest := src.text[end:src.lines[closeLine].end]; strings.TrimSpace(rest) != "" {
					children = append(children, l.dialogueSpan(closeLine, closeLine, end+indentWidth(rest)))
				}
				k = closeLine + 1
				continue
			}
			l.diag(UnterminatedSpan, Parenthetical, open, "unterminated parenthetical")
		}
		m := k
		for m < last && !l.opensParenthetical(m+1, parenClose) {
			m++
		}
		children = append(children, l.dialogueSpan(k, m, ln.start))
		k = m + 1
	}
	g := group{line: c.line, last: last, span: Span{Kind: DialogueBlock, Start: start, End: blockEnd, Text: src.text[start:blockEnd], Children: children}}
	l.grp = &g
	return g
}

func (l *Lexer) opensParenthetical(li, parenClose int) bool {
	ln := l.src.lines[li]
	open := ln.start + indentWidth(l.src.text[ln.start:ln.end])
	return open < ln.end && l.src.text[open] == '(' && parenClose > open
}

// dialogueSpan covers lines first..last, starting at from on the first line.
func (l *Lexer) dialogueSpan(first, last, from int) Span {
	end := l.src.lines[last].end
	var children []Span
	for i := first; i <= last; i++ {
		at := l.src.lines[i].start
		if i == first {
			at = from
		}
		children = append(children, l.inlineFor(i).scan(at, false)...)
	}
	return Span{Kind: Dialogue, Start: from, End: end, Text: l.src.text[from:end], Children: children}
}

func (l *Lexer) matchDialogue(c matchContext) (Span, bool) {
	cu, ok := l.parseCue(c.line, c.prevBlank)
	if !ok || cu.dual {
		return Span{}, false
	}
	return l.buildGroup(cu).span, true
}

// matchDualDialogue pairs the block at the cursor with the next block when
// that block's cue carries '^'. A '^' block with no partner before it is
// still tagged dual, holding a single group.
func (l *Lexer) matchDualDialogue(c matchContext) (Span, bool) {
	a, ok := l.parseCue(c.line, c.prevBlank)
	if !ok {
		return Span{}, false
	}
	ga := l.buildGroup(a)
	if next := l.src.nextNonBlank(ga.last + 1); next < l.src.n() {
		if b, ok := l.parseCue(next, true); ok && b.dual {
			gb := l.buildGroup(b)
			return l.dualSpan(ga.span, gb.span), true
		}
	}
	if a.dual {
		return l.dualSpan(ga.span), true
	}
	return Span{}, false
}

func (l *Lexer) dualSpan(groups ...Span) Span {
	start, end := groups[0].Start, groups[len(groups)-1].End
	return Span{Kind: DualDialogueBlock, Start: start, End: end, Text: l.src.text[start:end], Children: groups}
}

// CueName returns the character name of a cue line, without the forcing '@',
// the extension and the dual-dialogue caret.
func CueName(cue string) string {
	s := strings.TrimPrefix(strings.TrimSpace(cue), "@")
	s = strings.TrimSuffix(s, "^")
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
