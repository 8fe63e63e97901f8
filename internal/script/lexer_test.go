/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

// lexOK lexes src with the default options and checks the structural
// invariants every result must satisfy.
func lexOK(t *testing.T, src string) []Span {
	t.Helper()
	spans, _ := Lex(src, DefaultOptions())
	checkTiling(t, src, spans)
	return spans
}

func checkTiling(t *testing.T, src string, spans []Span) {
	t.Helper()
	var b strings.Builder
	pos := 0
	for i, s := range spans {
		if s.Start != pos {
			t.Fatalf("span %d %v starts at %d, want %d (src %q)", i, s, s.Start, pos, src)
		}
		if s.End <= s.Start {
			t.Fatalf("span %d %v is empty (src %q)", i, s, src)
		}
		if i > 0 && s.Kind == Plain && spans[i-1].Kind == Plain {
			t.Fatalf("adjacent plain spans at %d (src %q)", i, src)
		}
		checkTree(t, src, s)
		b.WriteString(s.Text)
		pos = s.End
	}
	if b.String() != src {
		t.Fatalf("spans do not reconstruct input:\n got %q\nwant %q", b.String(), src)
	}
}

func checkTree(t *testing.T, src string, s Span) {
	t.Helper()
	if s.Text != src[s.Start:s.End] {
		t.Fatalf("span %v text does not match source %q", s, src[s.Start:s.End])
	}
	prev := s.Start
	for _, c := range s.Children {
		if c.Start < prev || c.End > s.End || c.End <= c.Start {
			t.Fatalf("child %v escapes or overlaps within parent %v (src %q)", c, s, src)
		}
		if s.Kind.IsEmphasis() && c.Kind == s.Kind {
			t.Fatalf("%v directly contains its own kind: %v", s, c)
		}
		checkTree(t, src, c)
		prev = c.End
	}
}

func withoutPlain(spans []Span) []Span {
	var out []Span
	for _, s := range spans {
		if s.Kind != Plain {
			out = append(out, s)
		}
	}
	return out
}

func kindsOf(spans []Span) []Kind {
	out := make([]Kind, len(spans))
	for i, s := range spans {
		out[i] = s.Kind
	}
	return out
}

const sampleScript = `INT. HOUSE - DAY #1#

Steel enters, *quietly*.

STEEL
(whispering)
Anyone home?

BRICK ^
Nope.

CUT TO:

> THE END <
`

func TestLexSampleScript(t *testing.T) {
	spans := withoutPlain(lexOK(t, sampleScript))
	want := []Kind{Heading, Action, DualDialogueBlock, Transition, Action}
	if got := kindsOf(spans); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if spans[1].Text != "Steel enters, *quietly*." {
		t.Fatalf("action text = %q", spans[1].Text)
	}
	if spans[4].Children[0].Kind != Centered {
		t.Fatalf("expected centered text in final action, got %+v", spans[4].Children)
	}
}

var corpus = []string{
	"",
	"\n",
	"\n\n\n",
	"   \n\t\n",
	sampleScript,
	"STEEL\nThe man's a myth!\n\nEXT. HOUSE - DAY\n",
	"!HE WALKS IN.\n",
	"INT. HOUSE - DAY #1#\n\n",
	"BRICK ^\nScrew retirement.\n\nSTEEL ^\nScrew retirement.\n",
	"x **a *b **c** d* e** y\n",
	"***\n**\n*\n_\n>\n<\n",
	"/* open\n",
	"/* a */ b /* c\n",
	"STEEL\n(unclosed\nline\n",
	"@\n@x\n\n@ \nhi\n",
	".\n..\n. \n.a\n",
	"#\n#1\nINT #\nINT. X #1\n",
	"BOOM",
	"He waits.\n\nBOOM",
	"INT.",
	"A\n(\n)\n(x) y\n",
	"José walks.\n\nJOSÉ\n¡Hola!\n",
	"\\*not\\* _\\_x_\n",
	"> a < b > c <\n> only\n",
	"\r\nSTEEL\r\nHi.\r\n\r\n",
}

func TestTotality(t *testing.T) {
	for _, src := range corpus {
		lexOK(t, src)
	}
}

func TestTotalityRandom(t *testing.T) {
	pieces := []string{
		"INT. ", "EXT ", ".", "!", "@", ">", "<", "^", "(", ")", "*", "**", "***",
		"_", "\\", "/*", "*/", "#", "#1#", "STEEL", "Mc", "CUT TO:", "hello ",
		"world", " ", "\t", "\n", "\n\n", "é", "日本", "42",
	}
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 3000; n++ {
		var b strings.Builder
		for k := rng.Intn(40); k > 0; k-- {
			b.WriteString(pieces[rng.Intn(len(pieces))])
		}
		src := b.String()
		lexOK(t, src)
		opts := Options{CaseInsensitiveKeywords: rng.Intn(2) == 0, RecognizeForcedMarkers: rng.Intn(2) == 0}
		spans, _ := Lex(src, opts)
		checkTiling(t, src, spans)
	}
}

func TestDeterminism(t *testing.T) {
	for _, src := range corpus {
		a, da := Lex(src, DefaultOptions())
		b, db := Lex(src, DefaultOptions())
		if !reflect.DeepEqual(a, b) || !reflect.DeepEqual(da, db) {
			t.Fatalf("two runs over %q differ", src)
		}
	}
}

func TestNextMatchesLex(t *testing.T) {
	want, _ := Lex(sampleScript, DefaultOptions())
	l := New(sampleScript, DefaultOptions())
	var got []Span
	for {
		sp, ok := l.Next()
		if !ok {
			break
		}
		got = append(got, sp)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("streamed spans differ from Lex")
	}
	if _, ok := l.Next(); ok {
		t.Fatalf("Next after end should report false")
	}
}

func TestLexContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	spans, _, err := LexContext(ctx, sampleScript, DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(spans) != 0 {
		t.Fatalf("expected no spans after cancellation, got %d", len(spans))
	}
	spans, _, err = LexContext(context.Background(), sampleScript, DefaultOptions())
	if err != nil || len(spans) == 0 {
		t.Fatalf("LexContext = %d spans, %v", len(spans), err)
	}
}

func TestDispatchOrder(t *testing.T) {
	want := []Kind{Heading, DualDialogueBlock, DialogueBlock, Transition, Action}
	for i, k := range want {
		if dispatch[i].kind != k {
			t.Fatalf("dispatch[%d] = %v, want %v", i, dispatch[i].kind, k)
		}
	}
	if last := dispatch[len(dispatch)-1]; last.kind != Comment {
		t.Fatalf("block comments should be tried last, got %v", last.kind)
	}
}

func TestBlockComment(t *testing.T) {
	spans := withoutPlain(lexOK(t, "/* boneyard\nstuff */\nHe runs.\n"))
	if got := kindsOf(spans); !reflect.DeepEqual(got, []Kind{Comment, Action}) {
		t.Fatalf("kinds = %v", got)
	}
	if spans[0].Text != "/* boneyard\nstuff */" || len(spans[0].Children) != 0 {
		t.Fatalf("comment = %+v", spans[0])
	}
}

func TestUnterminatedCommentDegradesToAction(t *testing.T) {
	src := "/* never closed\nHe runs.\n"
	spans, diags := Lex(src, DefaultOptions())
	checkTiling(t, src, spans)
	if spans[0].Kind != Action || spans[0].Text != "/* never closed\nHe runs." {
		t.Fatalf("first span = %+v", spans[0])
	}
	found := false
	for _, d := range diags {
		if d.Code == UnterminatedSpan && d.Kind == Comment && d.Offset == 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing unterminated comment diagnostic in %+v", diags)
	}
}

func TestDiagnosticPosition(t *testing.T) {
	_, diags := Lex("He sits.\nHe says *hello.\n", DefaultOptions())
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	d := diags[0]
	if d.Kind != Italic || d.Line != 2 || d.Column != 9 || d.Offset != 17 {
		t.Fatalf("diagnostic = %+v", d)
	}
	if d.String() != "2:9: unterminated italic marker *" {
		t.Fatalf("String() = %q", d.String())
	}
}

func TestZeroLengthMatchReportsAttemptedKind(t *testing.T) {
	saved := dispatch
	defer func() { dispatch = saved }()
	empty := matcher{Plain, false, func(l *Lexer, c matchContext) (Span, bool) {
		return Span{Kind: Bold, Start: c.pos, End: c.pos}, true
	}}
	dispatch = append([]matcher{empty}, saved...)

	src := "He runs.\n"
	spans, diags := Lex(src, DefaultOptions())
	checkTiling(t, src, spans)
	if len(diags) == 0 {
		t.Fatalf("expected a forward progress diagnostic")
	}
	if d := diags[0]; d.Code != ForwardProgressViolation || d.Kind != Bold || d.Offset != 0 {
		t.Fatalf("diagnostic = %+v, want bold at 0", d)
	}
}
