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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	applog "fountainlex/internal/log"
	"fountainlex/internal/script"
)

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	ID        int64
	Path      string
	SHA256    string
	Size      int
	Spans     int
	IndexedAt time.Time
}

// ErrNotIndexed is returned for documents the index does not know.
var ErrNotIndexed = errors.New("document not indexed")

// IndexDocument replaces the rows for docPath with the given span tree and
// records a text snapshot when the content changed since the last one.
// Rows are laid out by FlattenSpans. It returns the number of span rows written.
func IndexDocument(ctx context.Context, db *sql.DB, docPath, src string, spans []script.Span) (int, error) {
	if strings.TrimSpace(docPath) == "" {
		return 0, errors.New("document path is required")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "index_document")
	sum := sha256.Sum256([]byte(src))
	digest := hex.EncodeToString(sum[:])
	now := time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteDocument(ctx, tx, docPath); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO documents(path, sha256, size, span_count, indexed_at) VALUES(?, ?, ?, 0, ?)`,
		docPath, digest, len(src), now.Format(tsLayout))
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spans(doc_id, parent_id, kind, depth, start_off, end_off, line, forced, character, text)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare span insert: %w", err)
	}
	defer stmt.Close()

	rows := FlattenSpans(src, spans)
	ids := make([]int64, len(rows))
	for i, r := range rows {
		var parent sql.NullInt64
		if r.Parent >= 0 {
			parent = sql.NullInt64{Int64: ids[r.Parent], Valid: true}
		}
		var ch sql.NullString
		if r.Character != "" {
			ch = sql.NullString{String: r.Character, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, docID, parent, r.Kind.String(), r.Depth, r.Start, r.End, r.Line, r.Forced, ch, r.Text)
		if err != nil {
			return 0, fmt.Errorf("insert span %s: %w", r.Kind, err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("span id: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET span_count=? WHERE doc_id=?`, len(rows), docID); err != nil {
		return 0, fmt.Errorf("update span count: %w", err)
	}

	var lastSum string
	err = tx.QueryRowContext(ctx, `SELECT sha256 FROM snapshots WHERE doc_path=? ORDER BY ts DESC, id DESC LIMIT 1`, docPath).Scan(&lastSum)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read last snapshot: %w", err)
	}
	if lastSum != digest {
		if _, err := tx.ExecContext(ctx, insertSnapshotSQL, docPath, now.Format(tsLayout), digest, src); err != nil {
			return 0, fmt.Errorf("insert snapshot: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.InfoContext(applog.ContextWithDocument(ctx, docPath), "document indexed", slog.Int("spans", len(rows)), slog.Int("bytes", len(src)))
	return len(rows), nil
}

// SpanRow is one stored span: the tree flattened in pre-order with a link to
// the parent row. Parent is -1 for top-level spans.
type SpanRow struct {
	Kind      script.Kind
	Start     int
	End       int
	Line      int
	Depth     int
	Parent    int
	Forced    bool
	Character string
	Text      string
}

// FlattenSpans turns a span tree into rows, dropping Plain spans. Every span
// inside a single dialogue block carries the block's cue name as Character.
func FlattenSpans(src string, spans []script.Span) []SpanRow {
	lines := lineStarts(src)
	var out []SpanRow
	var add func(s script.Span, parent, depth int, character string)
	add = func(s script.Span, parent, depth int, character string) {
		if s.Kind == script.Plain {
			return
		}
		if s.Kind == script.DialogueBlock && len(s.Children) > 0 && s.Children[0].Kind == script.Character {
			character = script.CueName(s.Children[0].Text)
		}
		out = append(out, SpanRow{
			Kind: s.Kind, Start: s.Start, End: s.End, Line: lineOf(lines, s.Start),
			Depth: depth, Parent: parent, Forced: s.Forced, Character: character, Text: s.Text,
		})
		self := len(out) - 1
		for _, c := range s.Children {
			add(c, self, depth+1, character)
		}
	}
	for _, s := range spans {
		add(s, -1, 0, "")
	}
	return out
}

// lineStarts returns the byte offset of every line start in src.
func lineStarts(src string) []int {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf returns the 1-based line containing offset.
func lineOf(starts []int, offset int) int {
	return sort.SearchInts(starts, offset+1)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func deleteDocument(ctx context.Context, db execer, docPath string) error {
	// spans first so the FTS delete trigger sees every row
	if _, err := db.ExecContext(ctx, `DELETE FROM spans WHERE doc_id IN (SELECT doc_id FROM documents WHERE path=?)`, docPath); err != nil {
		return fmt.Errorf("delete spans: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM documents WHERE path=?`, docPath); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// RemoveDocument drops docPath from the index. Its snapshots are kept.
func RemoveDocument(ctx context.Context, db *sql.DB, docPath string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := deleteDocument(ctx, tx, docPath); err != nil {
		return err
	}
	return tx.Commit()
}

// Documents lists the indexed documents ordered by path.
func Documents(ctx context.Context, db *sql.DB) ([]DocumentInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT doc_id, path, sha256, size, span_count, indexed_at FROM documents ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var out []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		var ts string
		if err := rows.Scan(&d.ID, &d.Path, &d.SHA256, &d.Size, &d.Spans, &ts); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.IndexedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Document returns the index entry for docPath, or ErrNotIndexed.
func Document(ctx context.Context, db *sql.DB, docPath string) (DocumentInfo, error) {
	var d DocumentInfo
	var ts string
	err := db.QueryRowContext(ctx, `SELECT doc_id, path, sha256, size, span_count, indexed_at FROM documents WHERE path=?`, docPath).
		Scan(&d.ID, &d.Path, &d.SHA256, &d.Size, &d.Spans, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("%w: %s", ErrNotIndexed, docPath)
	}
	if err != nil {
		return d, fmt.Errorf("read document: %w", err)
	}
	d.IndexedAt, _ = time.Parse(tsLayout, ts)
	return d, nil
}
