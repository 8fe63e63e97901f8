/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script lexes Fountain screenplay text into tagged spans.
//
// The lexer is a single left-to-right pass over an immutable buffer. At each
// cursor position a fixed, ranked list of matchers is tried and the first
// match wins; text no matcher claims is emitted as Plain, so the top-level
// spans always tile the input. Lexing never fails: malformed input degrades
// to literal text and is reported through Diagnostics.
//
// A Lexer holds only its own cursor state, so separate documents can be
// lexed concurrently with separate Lexers.
package script

import "context"

// matcher is one row of the ranked dispatch table.
type matcher struct {
	kind      Kind
	lineStart bool // only tried when the cursor is at the start of a line
	match     func(*Lexer, matchContext) (Span, bool)
}

// dispatch is evaluated in order; the first successful matcher wins.
var dispatch = []matcher{
	{Heading, true, (*Lexer).matchHeading},
	{DualDialogueBlock, true, (*Lexer).matchDualDialogue},
	{DialogueBlock, true, (*Lexer).matchDialogue},
	{Transition, true, (*Lexer).matchTransition},
	{Action, true, (*Lexer).matchAction},
	{Plain, false, (*Lexer).matchEmphasis}, // any emphasis kind
	{Comment, false, (*Lexer).matchComment},
}

// Lexer produces top-level spans one at a time.
type Lexer struct {
	src  *source
	opts Options
	pos  int

	held       *Span
	diags      []Diagnostic
	inl        *inline
	grp        *group
	actionStop int
	resumeTo   int
}

// New returns a Lexer over src.
func New(src string, opts Options) *Lexer {
	return &Lexer{src: newSource(src), opts: opts, resumeTo: -1}
}

// Lex returns all top-level spans of src together with any diagnostics.
func Lex(src string, opts Options) ([]Span, []Diagnostic) {
	l := New(src, opts)
	var out []Span
	for {
		sp, ok := l.Next()
		if !ok {
			break
		}
		out = append(out, sp)
	}
	return out, l.Diagnostics()
}

// LexContext is Lex with cancellation. ctx is only checked between
// top-level spans, so a cancelled run never returns a half-built span.
func LexContext(ctx context.Context, src string, opts Options) ([]Span, []Diagnostic, error) {
	l := New(src, opts)
	var out []Span
	for {
		if err := ctx.Err(); err != nil {
			return out, l.Diagnostics(), err
		}
		sp, ok := l.Next()
		if !ok {
			return out, l.Diagnostics(), nil
		}
		out = append(out, sp)
	}
}

// Diagnostics returns the conditions recorded so far, in source order of
// discovery.
func (l *Lexer) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), l.diags...)
}

// Next returns the next top-level span, or false once the input is consumed.
func (l *Lexer) Next() (Span, bool) {
	if l.held != nil {
		sp := *l.held
		l.held = nil
		l.pos = sp.End
		return sp, true
	}
	text := l.src.text
	from := l.pos
	for l.pos < len(text) {
		sp, ok := l.matchAt(l.pos)
		if !ok {
			l.pos = l.skip(l.pos)
			continue
		}
		if sp.Start > from {
			l.held = &sp
			l.pos = sp.Start
			return l.plain(from, sp.Start), true
		}
		l.pos = sp.End
		return sp, true
	}
	if l.pos > from {
		return l.plain(from, l.pos), true
	}
	return Span{}, false
}

func (l *Lexer) plain(start, end int) Span {
	return Span{Kind: Plain, Start: start, End: end, Text: l.src.text[start:end]}
}

func (l *Lexer) matchAt(pos int) (Span, bool) {
	li := l.src.lineOf(pos)
	c := matchContext{pos: pos, line: li, prevBlank: l.src.blank(li - 1)}
	atLineStart := pos == l.src.lines[li].start
	for _, m := range dispatch {
		if m.lineStart && !atLineStart {
			continue
		}
		sp, ok := m.match(l, c)
		if !ok {
			continue
		}
		if sp.Start < pos || sp.End <= sp.Start {
			l.diag(ForwardProgressViolation, sp.Kind, pos, "empty "+sp.Kind.String()+" match ignored")
			continue
		}
		return sp, true
	}
	return Span{}, false
}

// skip advances past one unclaimed unit: a whole blank line at a line start,
// otherwise a single rune.
func (l *Lexer) skip(pos int) int {
	li := l.src.lineOf(pos)
	ln := l.src.lines[li]
	if pos == ln.start && ln.blank {
		if ln.end < len(l.src.text) {
			return ln.end + 1
		}
		return ln.end
	}
	return nextRune(l.src.text, pos)
}

// matchEmphasis claims a single emphasis span at the cursor for text that no
// block matcher took.
func (l *Lexer) matchEmphasis(c matchContext) (Span, bool) {
	in := l.inlineFor(c.line)
	ln := l.src.lines[c.line]
	if c.pos == ln.start+indentWidth(l.src.text[ln.start:ln.end]) && opensAt(Centered, l.src.text, c.pos, in.limit) {
		if sp, ok := in.parse(Centered, c.pos); ok {
			return sp, true
		}
	}
	return in.at(c.pos, inlineKinds)
}

func (l *Lexer) diag(code DiagnosticCode, k Kind, offset int, msg string) {
	line, col := l.src.position(offset)
	l.diags = append(l.diags, Diagnostic{Code: code, Kind: k, Offset: offset, Line: line, Column: col, Message: msg})
}
