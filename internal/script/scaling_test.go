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
	"testing"
	"time"
)

// lexTime returns the fastest of a few Lex runs over src.
func lexTime(src string) time.Duration {
	best := time.Duration(-1)
	for range 3 {
		start := time.Now()
		Lex(src, DefaultOptions())
		if d := time.Since(start); best < 0 || d < best {
			best = d
		}
	}
	return best
}

// checkLinear lexes build(n) and build(8n) and fails when the larger input
// takes far longer than eight times as long.
func checkLinear(t *testing.T, build func(n int) string) {
	t.Helper()
	if testing.Short() {
		t.Skip("timing test")
	}
	const n = 2000
	small, large := build(n), build(8*n)
	lexOK(t, small)
	ts, tl := lexTime(small), lexTime(large)
	if ts < time.Millisecond {
		ts = time.Millisecond
	}
	if ratio := float64(tl) / float64(ts); ratio > 25 {
		t.Fatalf("8x input took %.1fx as long (%v vs %v)", ratio, tl, ts)
	}
}

func TestActionRunScalesLinearly(t *testing.T) {
	// every all-caps paragraph resumes into the lowercase one at the end
	checkLinear(t, func(n int) string {
		return strings.Repeat("HE RUNS.\n\n", n) + "done"
	})
	spans := withoutPlain(lexOK(t, strings.Repeat("HE RUNS.\n\n", 50)+"done"))
	if len(spans) != 1 || spans[0].Kind != Action {
		t.Fatalf("kinds = %v, want one action", kindsOf(spans))
	}
}

func TestDialogueBlocksScaleLinearly(t *testing.T) {
	checkLinear(t, func(n int) string {
		return strings.Repeat("BOB\n(quietly)\nhi\n\n", n)
	})
}

func TestEmphasisLineScalesLinearly(t *testing.T) {
	// one long line where most openers never close
	checkLinear(t, func(n int) string {
		return strings.Repeat("* ** *** _ ", n)
	})
}

func TestEmphasisFailedOpenersShareScans(t *testing.T) {
	// "_c* d_" swallows the '*' that would close "*b", so that italic fails
	// inside the outer underline, which then closes at the next '_'
	src := "_a *b _c* d_ **e**\n"
	spans, diags := Lex(src, DefaultOptions())
	checkTiling(t, src, spans)
	spans = withoutPlain(spans)
	if len(spans) != 1 || spans[0].Kind != Action {
		t.Fatalf("kinds = %v", kindsOf(spans))
	}
	var got []string
	Walk(spans[0].Children, func(s Span, depth int) bool {
		got = append(got, s.Kind.String()+":"+s.Text)
		return true
	})
	want := []string{"underline:_a *b _", "bold:**e**"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("emphasis = %q, want %q", got, want)
	}
	var failed []Kind
	for _, d := range diags {
		failed = append(failed, d.Kind)
	}
	if len(failed) != 2 || failed[0] != Italic || failed[1] != Underline {
		t.Fatalf("diagnostics = %+v, want italic then underline", diags)
	}
}
