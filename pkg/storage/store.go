// Package storage persists BASIC files and VM snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/antibyte/retrocpc/pkg/logger"
)

var (
	ErrFileNotFound     = errors.New("file not found")
	ErrFileExists       = errors.New("file already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidName      = errors.New("invalid file name")
)

// File is a stored file. Type is "" for a BASIC program, "A" for ASCII
// (OPENOUT, SAVE ,A), "P" for protected and "B" for binary.
type File struct {
	Name    string
	Type    string
	Content []byte
	Address int
	Entry   int
	ModTime time.Time
}

// FileInfo is a catalogue entry.
type FileInfo struct {
	Name    string
	Type    string
	Size    int
	ModTime time.Time
}

// SnapshotInfo describes a stored snapshot without its data.
type SnapshotInfo struct {
	ID        string
	Label     string
	CreatedAt time.Time
	Size      int
}

// Store wraps the database connection.
type Store struct {
	conn *sql.DB
}

// InitDB opens the SQLite database at dbPath.
func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// CreateTables ensures all required tables exist.
func CreateTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS files (
			name TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			content BLOB,
			address INTEGER DEFAULT 0,
			entry INTEGER DEFAULT 0,
			mod_time INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			label TEXT,
			created_at INTEGER NOT NULL,
			data BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at)`,
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Open opens (and if needed creates) the store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := InitDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := CreateTables(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.StorageInfo("store opened at %s", dbPath)
	return &Store{conn: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// NormalizeName upper-cases a file name the way the disc filing system
// does; names are case-insensitive.
func NormalizeName(name string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" || strings.ContainsAny(n, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

// mask converts a catalogue mask to a GLOB pattern; "" matches everything.
func mask(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return "*"
	}
	return m
}

// Save stores a file, replacing an existing one of the same name.
func (s *Store) Save(ctx context.Context, f File) error {
	name, err := NormalizeName(f.Name)
	if err != nil {
		return err
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO files (name, type, content, address, entry, mod_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type, content = excluded.content,
			address = excluded.address, entry = excluded.entry,
			mod_time = excluded.mod_time
	`, name, f.Type, f.Content, f.Address, f.Entry, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	logger.StorageDebug("saved %s (%d bytes, type %q)", name, len(f.Content), f.Type)
	return nil
}

// Load reads a file.
func (s *Store) Load(ctx context.Context, name string) (File, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return File{}, err
	}
	var f File
	var mod int64
	err = s.conn.QueryRowContext(ctx, `
		SELECT name, type, content, address, entry, mod_time FROM files WHERE name = ?
	`, n).Scan(&f.Name, &f.Type, &f.Content, &f.Address, &f.Entry, &mod)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, n)
	}
	if err != nil {
		return File{}, fmt.Errorf("load %s: %w", n, err)
	}
	f.ModTime = time.Unix(mod, 0)
	return f, nil
}

// Catalog lists the files matching a mask with * and ? wildcards.
func (s *Store) Catalog(ctx context.Context, m string) ([]FileInfo, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT name, type, length(content), mod_time FROM files
		WHERE name GLOB ? ORDER BY name
	`, mask(m))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer rows.Close()

	var out []FileInfo
	for rows.Next() {
		var fi FileInfo
		var size sql.NullInt64
		var mod int64
		if err := rows.Scan(&fi.Name, &fi.Type, &size, &mod); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		fi.Size = int(size.Int64)
		fi.ModTime = time.Unix(mod, 0)
		out = append(out, fi)
	}
	return out, rows.Err()
}

// Erase deletes the files matching a mask and returns how many went.
func (s *Store) Erase(ctx context.Context, m string) (int, error) {
	if strings.TrimSpace(m) == "" {
		return 0, fmt.Errorf("%w: empty mask", ErrInvalidName)
	}
	res, err := s.conn.ExecContext(ctx, `DELETE FROM files WHERE name GLOB ?`, mask(m))
	if err != nil {
		return 0, fmt.Errorf("erase %s: %w", m, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrFileNotFound, mask(m))
	}
	logger.StorageInfo("erased %d file(s) matching %s", n, mask(m))
	return int(n), nil
}

// Rename renames oldName to newName; the target must not exist.
func (s *Store) Rename(ctx context.Context, newName, oldName string) error {
	nn, err := NormalizeName(newName)
	if err != nil {
		return err
	}
	on, err := NormalizeName(oldName)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE name = ?`, nn).Scan(&exists); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrFileExists, nn)
	}
	res, err := tx.ExecContext(ctx, `UPDATE files SET name = ?, mod_time = ? WHERE name = ?`, nn, time.Now().Unix(), on)
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrFileNotFound, on)
	}
	return tx.Commit()
}

// SaveSnapshot stores encoded VM state and returns its id.
func (s *Store) SaveSnapshot(ctx context.Context, label string, data []byte) (string, error) {
	id := uuid.New().String()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO snapshots (id, label, created_at, data) VALUES (?, ?, ?, ?)
	`, id, label, time.Now().UnixNano(), data)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	logger.StorageDebug("snapshot %s (%q, %d bytes)", id, label, len(data))
	return id, nil
}

// LoadSnapshot returns the data of a snapshot by id or label; for a label
// the newest snapshot wins.
func (s *Store) LoadSnapshot(ctx context.Context, idOrLabel string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRowContext(ctx, `
		SELECT data FROM snapshots WHERE id = ? OR label = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, idOrLabel, idOrLabel).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, idOrLabel)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

// ListSnapshots returns all snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, COALESCE(label, ''), created_at, length(data) FROM snapshots
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var si SnapshotInfo
		var created int64
		if err := rows.Scan(&si.ID, &si.Label, &created, &si.Size); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		si.CreatedAt = time.Unix(0, created)
		out = append(out, si)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps the newest keep snapshots and deletes the rest.
func (s *Store) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.StorageInfo("pruned %d snapshot(s)", n)
	}
	return int(n), nil
}
