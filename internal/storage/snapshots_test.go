/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
)

func TestSnapshotsOnlyOnChange(t *testing.T) {
	db := openTestIndex(t)
	ctx := context.Background()
	indexScript(t, db, "a.fountain", kitchenScript)
	indexScript(t, db, "a.fountain", kitchenScript)
	indexScript(t, db, "a.fountain", "EXT. ROOF - DAY\n")

	snaps, err := ListSnapshots(ctx, db, "a.fountain", 0)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Text != "EXT. ROOF - DAY\n" {
		t.Fatalf("newest snapshot first, got %q", snaps[0].Text)
	}
	latest, ok, err := LatestSnapshot(ctx, db, "a.fountain")
	if err != nil || !ok {
		t.Fatalf("LatestSnapshot: ok=%v err=%v", ok, err)
	}
	if latest.SHA256 != snaps[0].SHA256 {
		t.Fatalf("latest = %+v, want %+v", latest, snaps[0])
	}
	if _, ok, _ := LatestSnapshot(ctx, db, "missing.fountain"); ok {
		t.Fatalf("expected no snapshot for unknown path")
	}
}

func TestPruneSnapshots(t *testing.T) {
	db := openTestIndex(t)
	ctx := context.Background()
	for _, src := range []string{"A\n", "B\n", "C\n", "D\n"} {
		indexScript(t, db, "a.fountain", src)
	}
	indexScript(t, db, "b.fountain", "X\n")
	n, err := PruneSnapshots(ctx, db, "a.fountain", 2)
	if err != nil {
		t.Fatalf("PruneSnapshots: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
	snaps, _ := ListSnapshots(ctx, db, "a.fountain", 10)
	if len(snaps) != 2 || snaps[0].Text != "D\n" || snaps[1].Text != "C\n" {
		t.Fatalf("kept = %+v", snaps)
	}
	if other, _ := ListSnapshots(ctx, db, "b.fountain", 10); len(other) != 1 {
		t.Fatalf("pruning touched another document: %+v", other)
	}
}
