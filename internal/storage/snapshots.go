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
	"errors"
	"fmt"
	"time"
)

// tsLayout keeps stored timestamps fixed-width so they sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(doc_path, ts, sha256, text) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, sha256, text FROM snapshots WHERE doc_path=? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, sha256, text FROM snapshots WHERE doc_path=? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneSnapshotsSQL = `DELETE FROM snapshots WHERE doc_path=? AND id NOT IN (
	SELECT id FROM snapshots WHERE doc_path=? ORDER BY ts DESC, id DESC LIMIT ?
)`

// Snapshot is one recorded version of a document's text.
type Snapshot struct {
	TS     time.Time
	SHA256 string
	Text   string
}

// LatestSnapshot returns the most recent snapshot of docPath. ok is false
// when none exists.
func LatestSnapshot(ctx context.Context, db *sql.DB, docPath string) (snap Snapshot, ok bool, err error) {
	var ts string
	err = db.QueryRowContext(ctx, selectLatestSnapshotSQL, docPath).Scan(&ts, &snap.SHA256, &snap.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.TS, _ = time.Parse(tsLayout, ts)
	return snap, true, nil
}

// ListSnapshots returns up to limit snapshots of docPath, newest first.
func ListSnapshots(ctx context.Context, db *sql.DB, docPath string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, docPath, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		var ts string
		if err := rows.Scan(&ts, &s.SHA256, &s.Text); err != nil {
			return nil, err
		}
		s.TS, _ = time.Parse(tsLayout, ts)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps the keepLast newest snapshots of docPath and returns
// how many were deleted.
func PruneSnapshots(ctx context.Context, db *sql.DB, docPath string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := db.ExecContext(ctx, pruneSnapshotsSQL, docPath, docPath, keepLast)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
