/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"fountainlex/internal/script"
)

// ColorMode selects when Highlight emits ANSI sequences.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode normalizes a user-supplied color mode; empty means auto.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
	}
}

// Theme maps span kinds to terminal styles. Kinds without an entry are
// rendered with their parent's style.
type Theme map[script.Kind]lipgloss.Style

// DefaultTheme returns the built-in palette bound to renderer r.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	return Theme{
		script.Heading:            r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		script.SceneNumber:        r.NewStyle().Foreground(lipgloss.Color("244")),
		script.Transition:         r.NewStyle().Foreground(lipgloss.Color("170")),
		script.Character:          r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		script.CharacterExtension: r.NewStyle().Foreground(lipgloss.Color("180")),
		script.Parenthetical:      r.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		script.Dialogue:           r.NewStyle().Foreground(lipgloss.Color("252")),
		script.Underline:          r.NewStyle().Underline(true),
		script.Bold:               r.NewStyle().Bold(true),
		script.Italic:             r.NewStyle().Italic(true),
		script.BoldItalic:         r.NewStyle().Bold(true).Italic(true),
		script.Centered:           r.NewStyle().Foreground(lipgloss.Color("117")),
		script.Comment:            r.NewStyle().Faint(true),
	}
}

// HighlightOptions controls Highlight.
type HighlightOptions struct {
	Color ColorMode
	// Theme overrides DefaultTheme when set.
	Theme Theme
}

// Highlight writes src with every span styled by its kind. Text not covered
// by a styled span is written unchanged, so with color off the output is
// byte-identical to src.
func Highlight(w io.Writer, src string, spans []script.Span, opt HighlightOptions) error {
	r := lipgloss.NewRenderer(w)
	switch opt.Color {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	}
	theme := opt.Theme
	if theme == nil {
		theme = DefaultTheme(r)
	}
	h := highlighter{bw: bufio.NewWriter(w), src: src, theme: theme}
	pos := 0
	for _, s := range spans {
		h.plain(pos, s.Start, nil)
		h.span(s, nil)
		pos = s.End
	}
	h.plain(pos, len(src), nil)
	return h.bw.Flush()
}

type highlighter struct {
	bw    *bufio.Writer
	src   string
	theme Theme
}

// span renders s, inheriting the enclosing style for its own gaps.
func (h *highlighter) span(s script.Span, outer *lipgloss.Style) {
	st := outer
	if own, ok := h.theme[s.Kind]; ok {
		if outer != nil {
			own = own.Inherit(*outer)
		}
		st = &own
	}
	pos := s.Start
	for _, c := range s.Children {
		h.plain(pos, c.Start, st)
		h.span(c, st)
		pos = c.End
	}
	h.plain(pos, s.End, st)
}

// plain writes src[from:to] line by line so styles never straddle a newline.
func (h *highlighter) plain(from, to int, st *lipgloss.Style) {
	if from >= to {
		return
	}
	text := h.src[from:to]
	if st == nil {
		h.bw.WriteString(text)
		return
	}
	style := st.TabWidth(lipgloss.NoTabConversion)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			h.bw.WriteByte('\n')
		}
		if line != "" {
			h.bw.WriteString(style.Render(line))
		}
	}
}
