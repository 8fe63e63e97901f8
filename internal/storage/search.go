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
	"fmt"
	"strings"

	"fountainlex/internal/script"
)

// SearchQuery describes a span search.
// Text is matched as plain words: every word must occur in the span text and
// FTS5 operators are taken literally. An empty Text lists spans by filter only.
// Kinds, Path and Character are optional filters. Character compares against
// the cue name of the enclosing dialogue block, case-insensitively.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text      string
	Kinds     []script.Kind
	Path      string
	Character string
	Limit     int
	Offset    int
}

// SearchResult is a single matching span.
// Snippet holds a highlighted excerpt using [ ] markers when Text was given.
type SearchResult struct {
	SpanID    int64
	Path      string
	Kind      script.Kind
	Start     int
	End       int
	Line      int
	Character string
	Text      string
	Snippet   string
}

// CharacterCount is the number of dialogue blocks spoken by one character.
type CharacterCount struct {
	Name   string
	Blocks int
}

// Search runs q against the index.
func Search(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	terms := PlainTerms(q.Text)
	if terms != "" {
		sb.WriteString("SELECT s.span_id, d.path, s.kind, s.start_off, s.end_off, s.line, COALESCE(s.character,''), s.text, snippet(fts_spans, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_spans JOIN spans s ON fts_spans.rowid = s.span_id JOIN documents d ON d.doc_id = s.doc_id\n")
		sb.WriteString("WHERE fts_spans MATCH ?\n")
		args = append(args, terms)
	} else {
		sb.WriteString("SELECT s.span_id, d.path, s.kind, s.start_off, s.end_off, s.line, COALESCE(s.character,''), s.text, ''\n")
		sb.WriteString("FROM spans s JOIN documents d ON d.doc_id = s.doc_id\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND s.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k.String())
		}
	}
	if p := strings.TrimSpace(q.Path); p != "" {
		sb.WriteString(" AND d.path = ?\n")
		args = append(args, p)
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		sb.WriteString(" AND lower(s.character) = ?\n")
		args = append(args, strings.ToLower(c))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.path, s.start_off, s.depth\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var kind string
		var sn sql.NullString
		if err := rows.Scan(&r.SpanID, &r.Path, &kind, &r.Start, &r.End, &r.Line, &r.Character, &r.Text, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if r.Kind, err = script.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("span %d: %w", r.SpanID, err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PlainTerms turns free text into an FTS5 query that ANDs every word as a
// quoted string, so operators and punctuation in user input match literally.
func PlainTerms(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}

// CountByKind returns the number of stored spans per kind. An empty docPath
// counts over every document.
func CountByKind(ctx context.Context, db *sql.DB, docPath string) (map[script.Kind]int, error) {
	q := `SELECT s.kind, COUNT(*) FROM spans s JOIN documents d ON d.doc_id = s.doc_id`
	var args []any
	if docPath != "" {
		q += ` WHERE d.path = ?`
		args = append(args, docPath)
	}
	q += ` GROUP BY s.kind`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer rows.Close()
	out := map[script.Kind]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		k, err := script.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

// Characters lists the speaking characters with their dialogue block counts,
// most frequent first. An empty docPath covers every document.
func Characters(ctx context.Context, db *sql.DB, docPath string) ([]CharacterCount, error) {
	q := `SELECT s.character, COUNT(*) FROM spans s JOIN documents d ON d.doc_id = s.doc_id
		WHERE s.kind = ? AND s.character IS NOT NULL`
	args := []any{script.DialogueBlock.String()}
	if docPath != "" {
		q += ` AND d.path = ?`
		args = append(args, docPath)
	}
	q += ` GROUP BY s.character ORDER BY COUNT(*) DESC, s.character`
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("characters query: %w", err)
	}
	defer rows.Close()
	var out []CharacterCount
	for rows.Next() {
		var c CharacterCount
		if err := rows.Scan(&c.Name, &c.Blocks); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
