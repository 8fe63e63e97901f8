/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// matchContext is the lookaround state a line matcher sees: the line the
// cursor sits on and whether the line before it is blank. Lookbehind is
// never more than one line.
type matchContext struct {
	pos       int
	line      int
	prevBlank bool
}

// Scene heading keyword prefixes, longest first so "INT./EXT" wins over "INT".
var headingKeywords = []string{"INT./EXT", "INT/EXT", "I/E", "INT", "EXT", "EST"}

// headingKeyword returns the length of the keyword prefix of text, or 0.
// The keyword must be followed by a dot or blank.
func headingKeyword(text string, fold bool) int {
	for _, kw := range headingKeywords {
		if len(text) <= len(kw) {
			continue
		}
		p := text[:len(kw)]
		if p != kw && !(fold && strings.EqualFold(p, kw)) {
			continue
		}
		switch text[len(kw)] {
		case '.', ' ', '\t':
			return len(kw)
		}
	}
	return 0
}

// headingStart reports where a heading opening at line li begins.
// The keyword form always outranks the forced-period form.
func (l *Lexer) headingStart(li int) (start int, forced, ok bool) {
	ln := l.src.lines[li]
	text := l.src.text[ln.start:ln.end]
	i := indentWidth(text)
	if headingKeyword(text[i:], l.opts.CaseInsensitiveKeywords) > 0 {
		return ln.start, false, true
	}
	if l.opts.RecognizeForcedMarkers && i < len(text) && text[i] == '.' {
		rest := text[i+1:]
		if !strings.HasPrefix(rest, ".") && strings.TrimSpace(rest) != "" {
			return ln.start + i + 1, true, true
		}
	}
	return 0, false, false
}

// matchHeading covers the heading line and any lines up to the next blank
// line, which is left for the caller.
func (l *Lexer) matchHeading(c matchContext) (Span, bool) {
	start, forced, ok := l.headingStart(c.line)
	if !ok {
		return Span{}, false
	}
	last := l.src.paragraphEnd(c.line)
	end := l.src.lines[last].end
	var children []Span
	for i := c.line; i <= last; i++ {
		from := l.src.lines[i].start
		if i == c.line {
			from = start
		}
		children = append(children, l.sceneNumbers(from, l.src.lines[i].end)...)
	}
	return Span{Kind: Heading, Start: start, End: end, Text: l.src.text[start:end], Forced: forced, Children: children}, true
}

// sceneNumbers extracts #...# tokens from [from, to).
func (l *Lexer) sceneNumbers(from, to int) []Span {
	text := l.src.text
	var out []Span
	i := from
	for i < to {
		j := strings.IndexByte(text[i:to], '#')
		if j < 0 {
			break
		}
		open := i + j
		if open+1 >= to {
			l.diag(UnterminatedSpan, SceneNumber, open, "unterminated scene number")
			break
		}
		k := strings.IndexByte(text[open+2:to], '#')
		if k < 0 {
			l.diag(UnterminatedSpan, SceneNumber, open, "unterminated scene number")
			break
		}
		end := open + 2 + k + 1
		out = append(out, Span{Kind: SceneNumber, Start: open, End: end, Text: text[open:end]})
		i = end
	}
	return out
}

// isTransition reports whether line li is a transition. The inferred form is
// an uppercase line ending in "TO:" with blank lines on both sides; the
// forced form starts with '>' and has no closing '<' (that is centered text).
// A line forced to Action with '!' is never a transition.
func (l *Lexer) isTransition(li int, prevBlank bool) (forced, ok bool) {
	text := l.src.lineText(li)
	i := indentWidth(text)
	if l.opts.RecognizeForcedMarkers && i < len(text) && text[i] == '>' {
		rest := text[i+1:]
		if strings.TrimSpace(rest) != "" && !strings.Contains(rest, "<") {
			return true, true
		}
	}
	if l.forcedAction(li) {
		return false, false
	}
	t := strings.TrimSpace(text)
	if prevBlank && l.src.blank(li+1) && strings.HasSuffix(t, "TO:") && !hasLower(t) {
		return false, true
	}
	return false, false
}

func (l *Lexer) matchTransition(c matchContext) (Span, bool) {
	forced, ok := l.isTransition(c.line, c.prevBlank)
	if !ok {
		return Span{}, false
	}
	ln := l.src.lines[c.line]
	return Span{Kind: Transition, Start: ln.start, End: ln.end, Text: l.src.text[ln.start:ln.end], Forced: forced}, true
}

// cue is a recognised character cue line.
type cue struct {
	line     int
	extStart int // -1 when the cue has no extension
	extEnd   int
	dual     bool
	forced   bool
}

// parseCue recognises a character cue at line li: a blank line before, a
// non-blank line after, an uppercase name with at least one letter (any case
// after '@'), then an optional (extension) and an optional trailing '^'.
func (l *Lexer) parseCue(li int, prevBlank bool) (cue, bool) {
	if !prevBlank || l.src.blank(li) || l.src.blank(li+1) {
		return cue{}, false
	}
	ln := l.src.lines[li]
	text := l.src.text[ln.start:ln.end]
	c := cue{line: li, extStart: -1, extEnd: -1}
	i := indentWidth(text)
	if l.opts.RecognizeForcedMarkers && i < len(text) && text[i] == '@' {
		c.forced = true
		i++
	}
	letter := false
	j := i
name:
	for j < len(text) {
		r, w := utf8.DecodeRuneInString(text[j:])
		switch {
		case unicode.IsUpper(r), c.forced && unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r), r == ' ':
		default:
			break name
		}
		j += w
	}
	if !letter {
		return cue{}, false
	}
	rest := strings.TrimRight(text[j:], " \t\r")
	if strings.HasSuffix(rest, "^") {
		c.dual = true
		rest = strings.TrimRight(rest[:len(rest)-1], " \t")
	}
	switch {
	case rest == "":
	case rest[0] == '(' && strings.HasSuffix(rest, ")"):
		c.extStart = ln.start + j
		c.extEnd = c.extStart + len(rest)
		if strings.HasSuffix(rest, "^)") {
			c.dual = true
		}
	default:
		return cue{}, false
	}
	return c, true
}

func (l *Lexer) cueSpan(c cue) Span {
	ln := l.src.lines[c.line]
	sp := Span{Kind: Character, Start: ln.start, End: ln.end, Text: l.src.text[ln.start:ln.end], Forced: c.forced}
	if c.extStart >= 0 {
		sp.Children = []Span{{Kind: CharacterExtension, Start: c.extStart, End: c.extEnd, Text: l.src.text[c.extStart:c.extEnd]}}
	}
	return sp
}

// commentOpens reports whether a terminated block comment starts at pos.
func (l *Lexer) commentOpens(pos int) bool {
	return strings.HasPrefix(l.src.text[pos:], "/*") && l.src.commentClose >= pos+2
}

func (l *Lexer) matchComment(c matchContext) (Span, bool) {
	text := l.src.text
	if !strings.HasPrefix(text[c.pos:], "/*") {
		return Span{}, false
	}
	if l.src.commentClose < c.pos+2 {
		l.diag(UnterminatedSpan, Comment, c.pos, "unterminated block comment")
		return Span{}, false
	}
	end := c.pos + 2 + strings.Index(text[c.pos+2:], "*/") + 2
	return Span{Kind: Comment, Start: c.pos, End: end, Text: text[c.pos:end]}, true
}

func (l *Lexer) forcedAction(li int) bool {
	text := l.src.lineText(li)
	return l.opts.RecognizeForcedMarkers && strings.HasPrefix(text[indentWidth(text):], "!")
}

// claimed reports whether a paragraph starting at li (after a blank line)
// would be taken by a matcher ranked above Action.
func (l *Lexer) claimed(li int) bool {
	if _, _, ok := l.headingStart(li); ok {
		return true
	}
	if _, ok := l.parseCue(li, true); ok {
		return true
	}
	if _, ok := l.isTransition(li, true); ok {
		return true
	}
	ln := l.src.lines[li]
	return l.commentOpens(ln.start + indentWidth(l.src.text[ln.start:ln.end]))
}

// resumes reports whether an Action run may continue across the blank lines
// before paragraph li: the next paragraph that is not purely uppercase must
// contain lowercase text or be forced, and nothing on the way may be claimed
// by a higher-ranked matcher.
//
// Lines are only asked about in increasing order, so both outcomes of a walk
// are cached: every paragraph before a claimed one stops the run, and every
// paragraph up to a resuming one continues it. Each paragraph is walked once.
func (l *Lexer) resumes(li int) bool {
	if li < l.actionStop {
		return false
	}
	if li <= l.resumeTo {
		return true
	}
	for j := li; j < l.src.n(); {
		if l.claimed(j) {
			l.actionStop = j
			return false
		}
		if l.forcedAction(j) || hasLower(l.src.lineText(j)) {
			l.resumeTo = j
			return true
		}
		j = l.src.nextNonBlank(l.src.paragraphEnd(j) + 1)
	}
	l.actionStop = l.src.n()
	return false
}

// matchAction is the fallback for every non-blank line, except one that
// opens a terminated block comment.
func (l *Lexer) matchAction(c matchContext) (Span, bool) {
	ln := l.src.lines[c.line]
	if ln.blank {
		return Span{}, false
	}
	open := ln.start + indentWidth(l.src.text[ln.start:ln.end])
	if l.commentOpens(open) {
		return Span{}, false
	}
	if strings.HasPrefix(l.src.text[open:], "/*") {
		l.diag(UnterminatedSpan, Comment, open, "unterminated block comment")
	}
	last := l.src.paragraphEnd(c.line)
	for {
		next := l.src.nextNonBlank(last + 1)
		if next >= l.src.n() || !l.resumes(next) {
			break
		}
		last = l.src.paragraphEnd(next)
	}
	end := l.src.lines[last].end
	var children []Span
	for i := c.line; i <= last; i++ {
		if l.src.lines[i].blank {
			continue
		}
		children = append(children, l.inlineFor(i).scan(l.src.lines[i].start, true)...)
	}
	return Span{Kind: Action, Start: ln.start, End: end, Text: l.src.text[ln.start:end], Forced: l.forcedAction(c.line), Children: children}, true
}
