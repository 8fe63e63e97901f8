/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "testing"

// actionChildren lexes a single action line and returns its emphasis spans.
func actionChildren(t *testing.T, line string) []Span {
	t.Helper()
	spans := lexOK(t, line+"\n")
	if spans[0].Kind != Action {
		t.Fatalf("%q: first span is %v, want action", line, spans[0].Kind)
	}
	return spans[0].Children
}

func TestEmphasisMarkers(t *testing.T) {
	cases := []struct {
		line string
		kind Kind
		text string
	}{
		{"a *italic* b", Italic, "*italic*"},
		{"a **bold** b", Bold, "**bold**"},
		{"a ***both*** b", BoldItalic, "***both***"},
		{"a _under_ b", Underline, "_under_"},
		{"keypad: **\\*9765\\***", Bold, "**\\*9765\\***"},
	}
	for _, tc := range cases {
		got := actionChildren(t, tc.line)
		if len(got) != 1 || got[0].Kind != tc.kind || got[0].Text != tc.text {
			t.Errorf("%q: got %+v, want one %v %q", tc.line, got, tc.kind, tc.text)
		}
	}
}

func TestEmphasisLiteralFallback(t *testing.T) {
	for _, line := range []string{
		"a __ b",
		"a *open b",
		"a \\*not\\* b",
		"a ** b",
		"5 * 3 = 15",
	} {
		if got := actionChildren(t, line); len(got) != 0 {
			t.Errorf("%q: expected literal text, got %+v", line, got)
		}
	}
}

func TestEmphasisMixAndMatch(t *testing.T) {
	got := actionChildren(t, "From INCHES AWAY. _Steel's face FILLS the *Leupold Mark 4* scope_.")
	if len(got) != 1 || got[0].Kind != Underline {
		t.Fatalf("got %+v, want one underline", got)
	}
	inner := got[0].Children
	if len(inner) != 1 || inner[0].Kind != Italic || inner[0].Text != "*Leupold Mark 4*" {
		t.Fatalf("underline children = %+v", inner)
	}
}

func TestEmphasisNoDirectSelfNesting(t *testing.T) {
	got := actionChildren(t, "x **a *b **c** d* e** y")
	if len(got) != 1 || got[0].Kind != Bold {
		t.Fatalf("got %+v, want one bold", got)
	}
	italic := got[0].Children
	if len(italic) != 1 || italic[0].Kind != Italic || italic[0].Text != "*b **c** d*" {
		t.Fatalf("bold children = %+v", italic)
	}
	bold := italic[0].Children
	if len(bold) != 1 || bold[0].Kind != Bold || bold[0].Text != "**c**" {
		t.Fatalf("italic children = %+v", bold)
	}
}

func TestEmphasisChildrenTable(t *testing.T) {
	for _, k := range []Kind{BoldItalic, Bold, Italic, Underline, Centered} {
		children := EmphasisChildren(k)
		for _, c := range children {
			if c == k {
				t.Fatalf("%v may contain itself", k)
			}
		}
		want := 3
		if k == Centered {
			want = 4
		}
		if len(children) != want {
			t.Fatalf("%v has %d children, want %d", k, len(children), want)
		}
	}
	if len(EmphasisChildren(Action)) != 0 {
		t.Fatalf("non-emphasis kinds have no emphasis child table")
	}
}

func TestEmphasisStaysOnItsLine(t *testing.T) {
	src := "x *a\nb* y\n"
	spans, diags := Lex(src, DefaultOptions())
	checkTiling(t, src, spans)
	if len(spans[0].Children) != 0 {
		t.Fatalf("emphasis crossed a line break: %+v", spans[0].Children)
	}
	if len(diags) != 2 {
		t.Fatalf("expected two unterminated markers, got %+v", diags)
	}
}

func TestCenteredText(t *testing.T) {
	got := actionChildren(t, "> THE **END** <")
	if len(got) != 1 || got[0].Kind != Centered {
		t.Fatalf("got %+v, want centered", got)
	}
	if c := got[0].Children; len(c) != 1 || c[0].Kind != Bold {
		t.Fatalf("centered children = %+v", c)
	}
	// '>' only centers at the start of a line
	if got := actionChildren(t, "a > b < c"); len(got) != 0 {
		t.Fatalf("mid-line markers should stay literal, got %+v", got)
	}
}
