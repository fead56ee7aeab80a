package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"imgdupes/internal/models"
)

// Storage keeps the most recently exported duplicate report. It is an
// archive for the list command; scans never read from it.
type Storage struct {
	db     *sql.DB
	dbPath string
}

// ScanRecord summarizes one saved run
type ScanRecord struct {
	ID              int64
	Folders         []string
	ScannedAt       time.Time
	TotalImages     int
	TotalGroups     int
	TotalDuplicates int
}

// NewStorage opens (and creates if needed) the report database
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Current schema version
const schemaVersion = 1

func (s *Storage) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS groups (
		id INTEGER PRIMARY KEY,
		hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS group_paths (
		group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		path TEXT NOT NULL,
		PRIMARY KEY (group_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_group_paths_path ON group_paths(path);

	CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		folders TEXT NOT NULL,
		scanned_at INTEGER NOT NULL,
		total_images INTEGER NOT NULL,
		total_groups INTEGER NOT NULL,
		total_duplicates INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveGroups replaces the stored groups with groups
func (s *Storage) SaveGroups(groups []*models.DuplicateGroup) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM group_paths"); err != nil {
		return fmt.Errorf("failed to clear group paths: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM groups"); err != nil {
		return fmt.Errorf("failed to clear groups: %w", err)
	}

	groupStmt, err := tx.Prepare("INSERT INTO groups (id, hash) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer groupStmt.Close()

	pathStmt, err := tx.Prepare("INSERT INTO group_paths (group_id, position, path) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer pathStmt.Close()

	for i, group := range groups {
		id := group.ID
		if id == 0 {
			id = i + 1
		}
		if _, err := groupStmt.Exec(id, group.Fingerprint.String()); err != nil {
			return fmt.Errorf("failed to insert group %d: %w", id, err)
		}
		for pos, path := range group.Paths {
			if _, err := pathStmt.Exec(id, pos, path); err != nil {
				return fmt.Errorf("failed to insert path %s: %w", path, err)
			}
		}
	}

	return tx.Commit()
}

// GetDuplicateGroups returns all stored groups ordered by ID
func (s *Storage) GetDuplicateGroups() ([]*models.DuplicateGroup, error) {
	rows, err := s.db.Query(`
		SELECT g.id, g.hash, p.path
		FROM groups g
		JOIN group_paths p ON p.group_id = g.id
		ORDER BY g.id, p.position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var (
		groups  []*models.DuplicateGroup
		current *models.DuplicateGroup
	)
	for rows.Next() {
		var (
			id         int
			hash, path string
		)
		if err := rows.Scan(&id, &hash, &path); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if current == nil || current.ID != id {
			var fp uint64
			if _, err := fmt.Sscanf(hash, "%x", &fp); err != nil {
				return nil, fmt.Errorf("group %d has invalid hash %q: %w", id, hash, err)
			}
			current = &models.DuplicateGroup{
				ID:          id,
				Fingerprint: models.Fingerprint(fp),
				Hash:        hash,
			}
			groups = append(groups, current)
		}
		current.Paths = append(current.Paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return groups, nil
}

// GetGroupCount returns the number of stored groups
func (s *Storage) GetGroupCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM groups").Scan(&count)
	return count, err
}

// RecordScan records a run in history
func (s *Storage) RecordScan(result *models.ScanResult) error {
	_, err := s.db.Exec(`
		INSERT INTO scan_history (folders, scanned_at, total_images, total_groups, total_duplicates)
		VALUES (?, ?, ?, ?, ?)
	`, strings.Join(result.Folders, "\n"), time.Now().Unix(), result.TotalHashed, len(result.Groups), result.TotalDuplicates())
	return err
}

// LastScan returns the most recent history entry, or nil if there is none
func (s *Storage) LastScan() (*ScanRecord, error) {
	var (
		rec       ScanRecord
		folders   string
		scannedAt int64
	)
	err := s.db.QueryRow(`
		SELECT id, folders, scanned_at, total_images, total_groups, total_duplicates
		FROM scan_history
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&rec.ID, &folders, &scannedAt, &rec.TotalImages, &rec.TotalGroups, &rec.TotalDuplicates)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query scan history: %w", err)
	}
	if folders != "" {
		rec.Folders = strings.Split(folders, "\n")
	}
	rec.ScannedAt = time.Unix(scannedAt, 0)
	return &rec, nil
}
