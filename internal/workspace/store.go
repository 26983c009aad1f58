// Package workspace is the registry of workspace directories the git
// commands operate on.
package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/z8n24/codexmonitor-go/internal/gitcore"
)

// ErrNotFound is returned for unknown workspace ids.
var ErrNotFound = gitcore.ErrWorkspaceNotFound

// Entry is one registered workspace.
type Entry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists workspaces in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	path       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
)`

// Open opens (and creates if needed) the registry database.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating workspace db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening workspace db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating workspace schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add registers dir. Name defaults to the directory's base name.
func (s *Store) Add(ctx context.Context, dir, name string) (*Entry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace path is not a directory: %s", abs)
	}
	if name == "" {
		name = filepath.Base(abs)
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Name:      name,
		Path:      abs,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, path, created_at) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Name, entry.Path, entry.CreatedAt.Unix())
	if err != nil {
		if existing, gerr := s.byPath(ctx, abs); gerr == nil {
			return nil, fmt.Errorf("workspace already registered as %s", existing.ID)
		}
		return nil, fmt.Errorf("adding workspace: %w", err)
	}
	log.Debug().Str("id", entry.ID).Str("path", entry.Path).Msg("Workspace added")
	return entry, nil
}

// Get returns the workspace with id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, created_at FROM workspaces WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry, err
}

func (s *Store) byPath(ctx context.Context, path string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, created_at FROM workspaces WHERE path = ?`, path)
	return scanEntry(row)
}

// Path implements gitcore.Workspaces.
func (s *Store) Path(ctx context.Context, id string) (string, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return entry.Path, nil
}

// List returns all workspaces ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, created_at FROM workspaces ORDER BY name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Remove deletes the workspace with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("removing workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry   Entry
		created int64
	)
	if err := row.Scan(&entry.ID, &entry.Name, &entry.Path, &created); err != nil {
		return nil, err
	}
	entry.CreatedAt = time.Unix(created, 0).UTC()
	return &entry, nil
}
