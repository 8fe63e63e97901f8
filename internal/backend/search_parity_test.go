/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"fountainlex/internal/script"
	"fountainlex/internal/storage"
)

const parityScript = `INT. KITCHEN - NIGHT

Steel pours coffee.

STEEL
Where is the money?

BRICK
(shrugging)
Gone with the wind.

STEEL
Then we find the wind.
`

func openPGForTest(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("FLX_PG_DSN")
	if dsn == "" {
		t.Skip("FLX_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("migrations/0001_spans.sql")
	if err != nil || v != 1 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	for _, bad := range []string{"spans.sql", "x_spans.sql"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil || len(entries) == 0 {
		t.Fatalf("no embedded migrations: %v", err)
	}
	for _, e := range entries {
		if _, err := parseVersion(e.Name()); err != nil {
			t.Fatalf("migration %s: %v", e.Name(), err)
		}
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), "  "); !errors.Is(err, ErrNoDSN) {
		t.Fatalf("expected ErrNoDSN, got %v", err)
	}
}

func resultKeys(list []storage.SearchResult) map[string]bool {
	m := map[string]bool{}
	for _, r := range list {
		m[fmt.Sprintf("%s@%d-%d:%s", r.Kind, r.Start, r.End, r.Character)] = true
	}
	return m
}

func TestSearchParitySQLiteVsPostgres(t *testing.T) {
	db := openPGForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docPath := fmt.Sprintf("parity-%d.fountain", time.Now().UnixNano())
	spans, _ := script.Lex(parityScript, script.DefaultOptions())

	idx, err := storage.InitOrOpenIndex(storage.DefaultIndexPath(t.TempDir()))
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer idx.Close()
	local, err := storage.IndexDocument(ctx, idx, docPath, parityScript, spans)
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	published, err := PublishDocument(ctx, db, docPath, parityScript, spans)
	if err != nil {
		t.Fatalf("PublishDocument: %v", err)
	}
	t.Cleanup(func() { _ = UnpublishDocument(context.Background(), db, docPath) })
	if local != published {
		t.Fatalf("row counts differ: sqlite=%d pg=%d", local, published)
	}

	cases := []struct {
		name string
		q    storage.SearchQuery
		want int
	}{
		{"word", storage.SearchQuery{Text: "wind", Kinds: []script.Kind{script.Dialogue}}, 2},
		{"words_and", storage.SearchQuery{Text: "gone wind"}, 2},
		{"operator_literal", storage.SearchQuery{Text: "wind OR money", Kinds: []script.Kind{script.Dialogue}}, 0},
		{"character", storage.SearchQuery{Character: "steel", Kinds: []script.Kind{script.Dialogue}}, 2},
		{"kind_only", storage.SearchQuery{Kinds: []script.Kind{script.Heading, script.Parenthetical}}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.q.Path = docPath
			sres, err := storage.Search(ctx, idx, tc.q)
			if err != nil {
				t.Fatalf("sqlite search: %v", err)
			}
			pres, err := SearchSpans(ctx, db, tc.q)
			if err != nil {
				t.Fatalf("pg search: %v", err)
			}
			sset, pset := resultKeys(sres), resultKeys(pres)
			if len(sset) != tc.want || len(pset) != tc.want {
				t.Fatalf("sizes: sqlite=%d pg=%d want=%d", len(sset), len(pset), tc.want)
			}
			for k := range sset {
				if !pset[k] {
					t.Fatalf("%s found in sqlite only (pg=%v)", k, pset)
				}
			}
		})
	}
}
