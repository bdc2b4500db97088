package show

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store persists show projects.
type Store interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (*Project, error)
	Save(ctx context.Context, p Project) error
	Delete(ctx context.Context, id string) error
}

// SQLiteStore is the SQLite-backed Store implementation. Track data is
// stored as a JSON document; shows are read whole and never queried by
// their inner structure.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// List returns all projects ordered by title.
func (s *SQLiteStore) List(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, repeat, tracks FROM shows ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("listing shows: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating show rows: %w", err)
	}
	return projects, nil
}

// Get returns one project.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, repeat, tracks FROM shows WHERE id = ?`, id)
	p, err := scanProject(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save upserts a project after validation.
func (s *SQLiteStore) Save(ctx context.Context, p Project) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tracks, err := json.Marshal(p.Tracks)
	if err != nil {
		return fmt.Errorf("encoding tracks for show %q: %w", p.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shows (id, title, repeat, tracks, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			repeat = excluded.repeat,
			tracks = excluded.tracks,
			updated_at = excluded.updated_at`,
		p.ID, p.Title, p.Repeat, string(tracks), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving show %q: %w", p.ID, err)
	}
	return nil
}

// Delete removes a project.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting show %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting show %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(scan func(dest ...any) error) (Project, error) {
	var p Project
	var tracks string
	err := scan(&p.ID, &p.Title, &p.Repeat, &tracks)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, err
	}
	if err != nil {
		return Project{}, fmt.Errorf("scanning show row: %w", err)
	}
	if err := json.Unmarshal([]byte(tracks), &p.Tracks); err != nil {
		return Project{}, fmt.Errorf("decoding tracks for show %q: %w", p.ID, err)
	}
	return p, nil
}
