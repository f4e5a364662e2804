// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store persists export records in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the export database at dbPath. ":memory:"
// gives a private in-memory database.
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("export db path is required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(context.Background(), dbPath != ":memory:"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context, wal bool) error {
	if wal {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return fmt.Errorf("set WAL mode: %w", err)
		}
	}
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000;", "PRAGMA foreign_keys = ON;"} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		version := migrationVersion(entry.Name())
		if entry.IsDir() || version <= 0 {
			continue
		}
		var applied int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion parses the numeric prefix of "001_init.sql".
func migrationVersion(name string) int {
	digits := name
	if i := strings.IndexFunc(name, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = name[:i]
	}
	n, _ := strconv.Atoi(digits)
	return n
}

// Save writes rec in one transaction.
func (s *Store) Save(ctx context.Context, rec Record) error {
	opts, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exports (id, job_id, format, options, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.JobID, string(rec.Format), string(opts), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert export %s: %w", rec.ID, err)
	}
	for i, f := range rec.Files {
		units, err := json.Marshal(f.Units)
		if err != nil {
			return fmt.Errorf("encode units of %s: %w", f.Filename, err)
		}
		meta, err := json.Marshal(f.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", f.Filename, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO export_files (export_id, idx, filename, language, status, error, units, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, f.Filename, string(f.Language), f.Status, f.Error, string(units), string(meta),
		); err != nil {
			return fmt.Errorf("insert export file %s: %w", f.Filename, err)
		}
	}
	return tx.Commit()
}

// Get loads an export record.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var (
		rec       Record
		format    string
		opts      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, format, options, created_at FROM exports WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.JobID, &format, &opts, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load export %s: %w", id, err)
	}
	rec.Format = docgen.Format(format)
	if err := json.Unmarshal([]byte(opts), &rec.Options); err != nil {
		return Record{}, fmt.Errorf("decode options of %s: %w", id, err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Record{}, fmt.Errorf("decode created_at of %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, language, status, error, units, metadata
		 FROM export_files WHERE export_id = ? ORDER BY idx ASC`, id)
	if err != nil {
		return Record{}, fmt.Errorf("load export files %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f     File
			lang  string
			units string
			meta  string
		)
		if err := rows.Scan(&f.Filename, &lang, &f.Status, &f.Error, &units, &meta); err != nil {
			return Record{}, fmt.Errorf("scan export file: %w", err)
		}
		f.Language = extract.Language(lang)
		if err := json.Unmarshal([]byte(units), &f.Units); err != nil {
			return Record{}, fmt.Errorf("decode units of %s: %w", f.Filename, err)
		}
		if err := json.Unmarshal([]byte(meta), &f.Metadata); err != nil {
			return Record{}, fmt.Errorf("decode metadata of %s: %w", f.Filename, err)
		}
		rec.Files = append(rec.Files, f)
	}
	return rec, rows.Err()
}

// ListByJob returns the ids of the exports made from a job, oldest first.
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM exports WHERE job_id = ? ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list exports of %s: %w", jobID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes an export and its files.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete export %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
