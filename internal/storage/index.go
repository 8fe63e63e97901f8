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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "fountainlex/internal/log"
	"fountainlex/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName is the per-directory folder the default index lives in.
	IndexDirName  = ".flx"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it together with a
	// new step in runMigrations.
	schemaVersion = 2
)

// DefaultIndexPath returns the index location used for documents in dir.
func DefaultIndexPath(dir string) string {
	return filepath.Join(dir, IndexDirName, IndexFileName)
}

// InitOrOpenIndex opens the SQLite index at path, creating the file and its
// parent directory when needed, enables WAL mode and brings the schema up to
// date. Callers close the returned *sql.DB.
func InitOrOpenIndex(path string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready")
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so runMigrations can pick it up
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema steps up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// character lookups and kind filters
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_spans_character ON spans(character) WHERE character IS NOT NULL;`,
				`CREATE INDEX IF NOT EXISTS idx_spans_doc_kind ON spans(doc_id, kind);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		// best effort; a failed optimize leaves a valid index
		_, _ = db.ExecContext(ctx, `INSERT INTO fts_spans(fts_spans) VALUES('optimize')`)
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the span tables, the FTS table and its triggers.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id     INTEGER PRIMARY KEY,
			path       TEXT    NOT NULL UNIQUE,
			sha256     TEXT    NOT NULL,
			size       INTEGER NOT NULL,
			span_count INTEGER NOT NULL,
			indexed_at TEXT    NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS spans (
			span_id   INTEGER PRIMARY KEY,
			doc_id    INTEGER NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
			parent_id INTEGER,
			kind      TEXT    NOT NULL,
			depth     INTEGER NOT NULL,
			start_off INTEGER NOT NULL,
			end_off   INTEGER NOT NULL,
			line      INTEGER NOT NULL,
			forced    INTEGER NOT NULL DEFAULT 0,
			character TEXT,
			text      TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_spans_doc_start ON spans(doc_id, start_off);`,
		`CREATE INDEX IF NOT EXISTS idx_spans_character ON spans(character) WHERE character IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_spans_doc_kind ON spans(doc_id, kind);`,

		// External-content FTS5 over spans.text so snippet() can read the text back.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_spans USING fts5(
			text,
			content='spans',
			content_rowid='span_id',
			tokenize = 'unicode61'
		);`,

		// History of indexed document text
		`CREATE TABLE IF NOT EXISTS snapshots (
			id       INTEGER PRIMARY KEY,
			doc_path TEXT    NOT NULL,
			ts       TEXT    NOT NULL,
			sha256   TEXT    NOT NULL,
			text     TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_path_ts ON snapshots(doc_path, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS spans_ai AFTER INSERT ON spans BEGIN
			INSERT INTO fts_spans(rowid, text) VALUES (new.span_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS spans_ad AFTER DELETE ON spans BEGIN
			INSERT INTO fts_spans(fts_spans, rowid, text) VALUES ('delete', old.span_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS spans_au AFTER UPDATE OF text ON spans BEGIN
			INSERT INTO fts_spans(fts_spans, rowid, text) VALUES ('delete', old.span_id, old.text);
			INSERT INTO fts_spans(rowid, text) VALUES (new.span_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// OpenIndexChecked opens the index at path and runs an integrity check. A
// file that cannot be opened or fails the check is copied to a timestamped
// backup, removed and replaced by an empty index; rebuilt reports that case.
// Documents must then be indexed again.
func OpenIndexChecked(ctx context.Context, path string) (db *sql.DB, rebuilt bool, err error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_check").With(slog.String("path", path))
	db, err = InitOrOpenIndex(path)
	if err == nil {
		if healthy(ctx, db) {
			return db, false, nil
		}
		_ = db.Close()
	}
	l.Warn("index unusable, recreating", slog.Any("open_err", err))
	backupIndexFile(path)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	db, err = InitOrOpenIndex(path)
	if err != nil {
		return nil, false, fmt.Errorf("recreate index: %w", err)
	}
	return db, true, nil
}

func healthy(ctx context.Context, db *sql.DB) bool {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return false
	}
	_, err := db.ExecContext(ctx, `SELECT 1 FROM spans LIMIT 1;`)
	return err == nil
}

// backupIndexFile copies the index file into <index dir>/backups.
func backupIndexFile(indexPath string) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return
	}
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	_ = os.WriteFile(filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp)), data, 0o644)
}
