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
	"database/sql"
	"testing"
	"time"

	"fountainlex/internal/script"
)

const kitchenScript = `INT. KITCHEN - NIGHT

Steel pours coffee.

STEEL
Where is the money?

BRICK
(shrugging)
Gone with the wind.

STEEL
Then we find the wind.
`

func openTestIndex(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitOrOpenIndex(DefaultIndexPath(t.TempDir()))
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// indexScript lexes src with default options and stores it under path.
func indexScript(t *testing.T, db *sql.DB, path, src string) int {
	t.Helper()
	spans, _ := script.Lex(src, script.DefaultOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := IndexDocument(ctx, db, path, src, spans)
	if err != nil {
		t.Fatalf("IndexDocument(%s): %v", path, err)
	}
	return n
}

func countStored(spans []script.Span) int {
	n := 0
	script.Walk(spans, func(s script.Span, _ int) bool {
		if s.Kind != script.Plain {
			n++
		}
		return true
	})
	return n
}

func TestIndexDocumentStoresTree(t *testing.T) {
	db := openTestIndex(t)
	ctx := context.Background()
	spans, _ := script.Lex(kitchenScript, script.DefaultOptions())
	n := indexScript(t, db, "kitchen.fountain", kitchenScript)
	if want := countStored(spans); n != want {
		t.Fatalf("stored %d spans, want %d", n, want)
	}
	if n != 12 {
		t.Fatalf("stored %d spans, want 12", n)
	}
	doc, err := Document(ctx, db, "kitchen.fountain")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc.Spans != n || doc.Size != len(kitchenScript) || len(doc.SHA256) != 64 {
		t.Fatalf("unexpected document row: %+v", doc)
	}

	// children point at their block and sit one level deeper
	var orphans int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spans c LEFT JOIN spans p ON p.span_id = c.parent_id
		WHERE c.depth > 0 AND (p.span_id IS NULL OR p.depth <> c.depth - 1)`).Scan(&orphans); err != nil {
		t.Fatalf("query parents: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("found %d spans with a bad parent link", orphans)
	}

	var line int
	var character string
	if err := db.QueryRowContext(ctx, `SELECT line, character FROM spans WHERE kind='parenthetical'`).Scan(&line, &character); err != nil {
		t.Fatalf("query parenthetical: %v", err)
	}
	if line != 9 || character != "BRICK" {
		t.Fatalf("parenthetical line=%d character=%q, want 9 BRICK", line, character)
	}
}

func TestIndexDocumentReplacesRows(t *testing.T) {
	db := openTestIndex(t)
	ctx := context.Background()
	indexScript(t, db, "a.fountain", kitchenScript)
	indexScript(t, db, "a.fountain", "EXT. ROOF - DAY\n")

	docs, err := Documents(ctx, db)
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Spans != 1 {
		t.Fatalf("documents = %+v", docs)
	}
	res, err := Search(ctx, db, SearchQuery{Text: "wind"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("old spans still searchable: %+v", res)
	}
}

func TestRemoveDocument(t *testing.T) {
	db := openTestIndex(t)
	ctx := context.Background()
	indexScript(t, db, "a.fountain", kitchenScript)
	indexScript(t, db, "b.fountain", "EXT. ROOF - DAY\n\nWind howls.\n")
	if err := RemoveDocument(ctx, db, "a.fountain"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	if _, err := Document(ctx, db, "a.fountain"); err == nil {
		t.Fatalf("expected ErrNotIndexed after removal")
	}
	res, err := Search(ctx, db, SearchQuery{Text: "wind"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Path != "b.fountain" {
		t.Fatalf("results after removal = %+v", res)
	}
	// history survives removal
	snaps, err := ListSnapshots(ctx, db, "a.fountain", 10)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("snapshots = %v, err = %v", snaps, err)
	}
}

func TestLineOf(t *testing.T) {
	starts := lineStarts("ab\ncd\n\nef")
	cases := map[int]int{0: 1, 2: 1, 3: 2, 6: 3, 7: 4, 8: 4}
	for off, want := range cases {
		if got := lineOf(starts, off); got != want {
			t.Fatalf("lineOf(%d) = %d, want %d", off, got, want)
		}
	}
}
