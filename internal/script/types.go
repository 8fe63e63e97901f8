/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strings"
)

// Kind is the category tag of a Span.
// The set is closed; Plain marks text no matcher claimed so that the
// top-level sequence always tiles the whole input.
type Kind int

const (
	Plain Kind = iota
	Heading
	SceneNumber
	Action
	Transition
	Character
	CharacterExtension
	Parenthetical
	Dialogue
	DialogueBlock
	DualDialogueBlock
	Underline
	Bold
	Italic
	BoldItalic
	Centered
	Comment

	numKinds
)

var kindNames = [numKinds]string{
	Plain:              "plain",
	Heading:            "heading",
	SceneNumber:        "scene_number",
	Action:             "action",
	Transition:         "transition",
	Character:          "character",
	CharacterExtension: "character_extension",
	Parenthetical:      "parenthetical",
	Dialogue:           "dialogue",
	DialogueBlock:      "dialogue_block",
	DualDialogueBlock:  "dual_dialogue_block",
	Underline:          "underline",
	Bold:               "bold",
	Italic:             "italic",
	BoldItalic:         "bold_italic",
	Centered:           "centered",
	Comment:            "comment",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every category in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, numKinds)
	for k := Plain; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind maps a name produced by Kind.String back to its Kind.
// Matching ignores case and treats '-' like '_'.
func ParseKind(s string) (Kind, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, name := range kindNames {
		if name == n {
			return Kind(k), nil
		}
	}
	return Plain, fmt.Errorf("unknown kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || k >= numKinds {
		return nil, fmt.Errorf("invalid kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// IsEmphasis reports whether k belongs to the inline emphasis grammar.
func (k Kind) IsEmphasis() bool {
	switch k {
	case Underline, Bold, Italic, BoldItalic, Centered:
		return true
	}
	return false
}

// Span is a tagged region [Start, End) of the source, in byte offsets.
// Children are nested spans fully contained in the parent, ordered by Start
// and non-overlapping. Text between children belongs to the parent.
// Forced is set when a forcing prefix (. ! @ >) selected the category.
type Span struct {
	Kind     Kind   `json:"kind" yaml:"kind"`
	Start    int    `json:"start" yaml:"start"`
	End      int    `json:"end" yaml:"end"`
	Text     string `json:"text" yaml:"text"`
	Forced   bool   `json:"forced,omitempty" yaml:"forced,omitempty"`
	Children []Span `json:"children,omitempty" yaml:"children,omitempty"`
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string {
	return fmt.Sprintf("%s[%d,%d)%q", s.Kind, s.Start, s.End, s.Text)
}

// Walk visits spans in pre-order. depth is 0 for the given slice.
// Returning false from fn skips the children of that span.
func Walk(spans []Span, fn func(s Span, depth int) bool) {
	walk(spans, 0, fn)
}

func walk(spans []Span, depth int, fn func(Span, int) bool) {
	for _, s := range spans {
		if fn(s, depth) && len(s.Children) > 0 {
			walk(s.Children, depth+1, fn)
		}
	}
}

// Options controls which optional conventions the lexer honours.
// The zero value disables both; use DefaultOptions for the usual behaviour.
type Options struct {
	// CaseInsensitiveKeywords lets "int. house" open a scene heading.
	// It only affects the scene heading keyword prefixes.
	CaseInsensitiveKeywords bool `json:"case_insensitive_keywords" yaml:"case_insensitive_keywords"`
	// RecognizeForcedMarkers honours the . ! @ > forcing prefixes.
	RecognizeForcedMarkers bool `json:"recognize_forced_markers" yaml:"recognize_forced_markers"`
}

func DefaultOptions() Options {
	return Options{CaseInsensitiveKeywords: true, RecognizeForcedMarkers: true}
}

// DiagnosticCode classifies a recoverable lexing condition.
type DiagnosticCode string

const (
	// UnterminatedSpan: an opening marker had no closing counterpart in scope.
	// The text was lexed as literal content of the enclosing span.
	UnterminatedSpan DiagnosticCode = "unterminated_span"
	// ForwardProgressViolation: a matcher produced an empty match at a
	// non-terminal position and was treated as a non-match.
	ForwardProgressViolation DiagnosticCode = "forward_progress"
)

// Diagnostic describes a recoverable condition met while lexing.
// Line and Column are 1-based; Column counts bytes.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code" yaml:"code"`
	Kind    Kind           `json:"kind" yaml:"kind"`
	Offset  int            `json:"offset" yaml:"offset"`
	Line    int            `json:"line" yaml:"line"`
	Column  int            `json:"column" yaml:"column"`
	Message string         `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}
