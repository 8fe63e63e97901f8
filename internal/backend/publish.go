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
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	applog "fountainlex/internal/log"
	"fountainlex/internal/script"
	"fountainlex/internal/storage"
)

// PublishDocument replaces the published rows for docPath with the given
// span tree, laid out exactly like the local index. It returns the number of
// span rows written.
func PublishDocument(ctx context.Context, db *sql.DB, docPath, src string, spans []script.Span) (int, error) {
	if strings.TrimSpace(docPath) == "" {
		return 0, errors.New("document path is required")
	}
	l := applog.WithOperation(applog.WithComponent("backend"), "publish")
	sum := sha256.Sum256([]byte(src))
	rows := storage.FlattenSpans(src, spans)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, docPath); err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	var docID int64
	if err := tx.QueryRowContext(ctx, `INSERT INTO documents(path, sha256, size, span_count) VALUES($1, $2, $3, $4) RETURNING id`,
		docPath, hex.EncodeToString(sum[:]), len(src), len(rows)).Scan(&docID); err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO spans(document_id, parent_id, kind, depth, start_off, end_off, line, forced, speaker, text)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`)
	if err != nil {
		return 0, fmt.Errorf("prepare span insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	ids := make([]int64, len(rows))
	for i, r := range rows {
		var parent sql.NullInt64
		if r.Parent >= 0 {
			parent = sql.NullInt64{Int64: ids[r.Parent], Valid: true}
		}
		var speaker sql.NullString
		if r.Character != "" {
			speaker = sql.NullString{String: r.Character, Valid: true}
		}
		if err := stmt.QueryRowContext(ctx, docID, parent, r.Kind.String(), r.Depth, r.Start, r.End, r.Line, r.Forced, speaker, r.Text).Scan(&ids[i]); err != nil {
			return 0, fmt.Errorf("insert span %s: %w", r.Kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.InfoContext(applog.ContextWithDocument(ctx, docPath), "document published", slog.Int("spans", len(rows)))
	return len(rows), nil
}

// UnpublishDocument removes docPath and its spans from the store.
func UnpublishDocument(ctx context.Context, db *sql.DB, docPath string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, docPath); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
