// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog indexes a scan archive into SQLite with full-text search
// over file and dataset paths. The catalog is bookkeeping only; conversion
// never reads it.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/sonoexport/internal/scanfile"
	"github.com/pdiddy/sonoexport/pkg/types"
)

const dbFile = "catalog.db"

// Store manages the catalog SQLite database for one archive root.
type Store struct {
	db         *sql.DB
	root       string
	maxResults int
}

// NewStore opens or creates the catalog database for the archive rooted at
// root. A relative cfg.DBPath is taken under root; the schema is created
// when missing.
func NewStore(cfg types.CatalogConfig, root string) (*Store, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("reading archive root: %w", err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = dbFile
	}
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, root: root, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			dtype TEXT NOT NULL DEFAULT '',
			datasets TEXT NOT NULL DEFAULT '[]',
			size_bytes INTEGER NOT NULL DEFAULT 0,
			mod_time TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_kind ON scans(kind)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='scans_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE scans_fts USING fts5(path, datasets, content=scans, content_rowid=rowid)`,
			`CREATE TRIGGER scans_ai AFTER INSERT ON scans BEGIN
				INSERT INTO scans_fts(rowid, path, datasets) VALUES (new.rowid, new.path, new.datasets);
			END`,
			`CREATE TRIGGER scans_ad AFTER DELETE ON scans BEGIN
				INSERT INTO scans_fts(scans_fts, rowid, path, datasets) VALUES('delete', old.rowid, old.path, old.datasets);
			END`,
			`CREATE TRIGGER scans_au AFTER UPDATE ON scans BEGIN
				INSERT INTO scans_fts(scans_fts, rowid, path, datasets) VALUES('delete', old.rowid, old.path, old.datasets);
				INSERT INTO scans_fts(rowid, path, datasets) VALUES (new.rowid, new.path, new.datasets);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// BuildSummary holds counts from a catalog indexing run.
type BuildSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of scan files processed.
func (s BuildSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Build walks the archive root for scan files and indexes each one. Files
// whose modification time is unchanged since the last run are skipped.
// Per-file problems are counted and reported on w; only an unreadable root
// aborts the run.
func (s *Store) Build(ctx context.Context, w io.Writer) (BuildSummary, error) {
	var summary BuildSummary

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == s.root {
				return walkErr
			}
			fmt.Fprintf(w, "warning: %s: %v\n", path, walkErr)
			return nil
		}
		if d.IsDir() || !scanfile.IsScanPath(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("walking %s: %w", s.root, err)
	}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = path
		}

		fi, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}
		modTime := fi.ModTime().UTC().Format(time.RFC3339Nano)

		// Skip files whose mod time matches the indexed one.
		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT mod_time FROM scans WHERE path = ?`, rel,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", rel)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		info := inspectScan(path)
		info.Path = rel
		info.SizeBytes = fi.Size()
		info.ModTime = fi.ModTime()

		if err := s.upsert(ctx, info); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", rel, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%s)\n", rel, info.Kind)
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%s)\n", rel, info.Kind)
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

// inspectScan classifies one file and collects its catalog fields. Path,
// size, and mod time are the caller's to fill in.
func inspectScan(path string) types.ScanInfo {
	var info types.ScanInfo

	if !scanfile.SniffHDF5(path) {
		info.Kind = types.KindNotHDF5
		return info
	}

	f, err := scanfile.Open(path)
	if err != nil {
		if errors.Is(err, scanfile.ErrNotHDF5) {
			info.Kind = types.KindNotHDF5
		} else {
			info.Kind = types.KindCorrupt
		}
		return info
	}
	defer f.Close()

	info.Datasets = f.DatasetPaths()
	if f.SettingsOnly() {
		info.Kind = types.KindSettings
		return info
	}

	info.Kind = types.KindScan
	info.Width, info.Height, info.DType, _ = f.PrimaryFrameInfo()
	return info
}

func (s *Store) upsert(ctx context.Context, info types.ScanInfo) error {
	datasets := []byte("[]")
	if len(info.Datasets) > 0 {
		var err error
		datasets, err = json.Marshal(info.Datasets)
		if err != nil {
			return fmt.Errorf("encoding dataset list: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (path, kind, width, height, dtype, datasets, size_bytes, mod_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind = excluded.kind,
			width = excluded.width,
			height = excluded.height,
			dtype = excluded.dtype,
			datasets = excluded.datasets,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time`,
		info.Path, string(info.Kind), info.Width, info.Height, info.DType,
		string(datasets), info.SizeBytes, info.ModTime.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upserting %s: %w", info.Path, err)
	}
	return nil
}
