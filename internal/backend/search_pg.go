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
	"fmt"
	"strings"

	"fountainlex/internal/script"
	"fountainlex/internal/storage"
)

// SearchSpans runs q over the published spans. Text goes through
// plainto_tsquery, which ANDs plain words like storage.Search does, so
// both stores return the same rows for the same query.
func SearchSpans(ctx context.Context, db *sql.DB, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	// place appends a parameter and returns its $n placeholder
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	text := strings.TrimSpace(q.Text)
	b.WriteString("SELECT s.id, d.path, s.kind, s.start_off, s.end_off, s.line, COALESCE(s.speaker,''), s.text, ")
	if text != "" {
		tq := place(text)
		b.WriteString("COALESCE(ts_headline('simple', s.text, plainto_tsquery('simple', " + tq + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM spans s JOIN documents d ON d.id = s.document_id WHERE s.search_vector @@ plainto_tsquery('simple', " + tq + ") ")
	} else {
		b.WriteString("'' FROM spans s JOIN documents d ON d.id = s.document_id WHERE true ")
	}
	if len(q.Kinds) > 0 {
		names := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			names[i] = k.String()
		}
		b.WriteString(" AND s.kind = ANY (" + place(names) + ") ")
	}
	if p := strings.TrimSpace(q.Path); p != "" {
		b.WriteString(" AND d.path = " + place(p) + " ")
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		b.WriteString(" AND lower(s.speaker) = " + place(strings.ToLower(c)) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.path, s.start_off, s.depth ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		var kind string
		if err := rows.Scan(&r.SpanID, &r.Path, &kind, &r.Start, &r.End, &r.Line, &r.Character, &r.Text, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if r.Kind, err = script.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("span %d: %w", r.SpanID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
