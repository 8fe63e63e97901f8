/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"encoding/json"
	"testing"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if k, err := ParseKind(" Dual-Dialogue-Block "); err != nil || k != DualDialogueBlock {
		t.Fatalf("ParseKind folding: %v, %v", k, err)
	}
	if _, err := ParseKind("montage"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestKindJSON(t *testing.T) {
	b, err := json.Marshal(Span{Kind: BoldItalic, Start: 0, End: 7, Text: "***x***"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"kind":"bold_italic","start":0,"end":7,"text":"***x***"}`
	if string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}
	var sp Span
	if err := json.Unmarshal([]byte(`{"kind":"scene_number","start":3,"end":6,"text":"#1#"}`), &sp); err != nil {
		t.Fatal(err)
	}
	if sp.Kind != SceneNumber || sp.Len() != 3 {
		t.Fatalf("decoded %+v", sp)
	}
	if err := json.Unmarshal([]byte(`{"kind":"nope"}`), &sp); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := Kind(99).MarshalText(); err == nil {
		t.Fatalf("expected error for out of range kind")
	}
}

func TestWalk(t *testing.T) {
	spans := lexOK(t, sampleScript)
	var maxDepth, emphasis int
	Walk(spans, func(s Span, depth int) bool {
		if depth > maxDepth {
			maxDepth = depth
		}
		if s.Kind.IsEmphasis() {
			emphasis++
		}
		return true
	})
	// dual > dialogue block > character
	if maxDepth != 2 {
		t.Fatalf("max depth = %d", maxDepth)
	}
	if emphasis != 2 {
		t.Fatalf("emphasis spans = %d, want 2", emphasis)
	}

	visited := 0
	Walk(spans, func(Span, int) bool {
		visited++
		return false
	})
	if visited != len(spans) {
		t.Fatalf("pruned walk visited %d spans, want %d", visited, len(spans))
	}
}
