package flower

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Repository persists the static fields of the fleet.
// Runtime fields (connection status, flower status, brightness) are
// never stored; they are reset on every load.
type Repository interface {
	// List returns all persisted units.
	List(ctx context.Context) ([]Unit, error)

	// GetByID returns one unit. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int) (*Unit, error)

	// Create inserts a new unit. Returns ErrExists on a duplicate ID and
	// ErrPriorityTaken on a duplicate priority.
	Create(ctx context.Context, u *Unit) error

	// Update rewrites a unit's static fields. Returns ErrNotFound if absent.
	Update(ctx context.Context, u *Unit) error

	// Delete removes a unit. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id int) error
}

// SQLiteRepository is the SQLite-backed Repository implementation.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database.
// The flowers table must already exist (database.Migrate).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all persisted units ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Unit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, bus_id, priority FROM flowers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing flowers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Category, &u.BusID, &u.Priority); err != nil {
			return nil, fmt.Errorf("scanning flower row: %w", err)
		}
		u.ResetRuntime()
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating flower rows: %w", err)
	}
	return units, nil
}

// GetByID returns a single unit by its wire address.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int) (*Unit, error) {
	var u Unit
	err := r.db.QueryRowContext(ctx,
		`SELECT id, category, bus_id, priority FROM flowers WHERE id = ?`, id).
		Scan(&u.ID, &u.Category, &u.BusID, &u.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying flower %d: %w", id, err)
	}
	u.ResetRuntime()
	return &u, nil
}

// Create inserts a new unit.
func (r *SQLiteRepository) Create(ctx context.Context, u *Unit) error {
	if err := Validate(u); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flowers (id, category, bus_id, priority) VALUES (?, ?, ?, ?)`,
		u.ID, u.Category, u.BusID, u.Priority)
	if err != nil {
		return mapConstraintError(err)
	}
	return nil
}

// Update rewrites a unit's static fields.
func (r *SQLiteRepository) Update(ctx context.Context, u *Unit) error {
	if err := Validate(u); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE flowers SET category = ?, bus_id = ?, priority = ? WHERE id = ?`,
		u.Category, u.BusID, u.Priority, u.ID)
	if err != nil {
		return mapConstraintError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating flower %d: %w", u.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a unit.
func (r *SQLiteRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM flowers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting flower %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting flower %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// mapConstraintError converts SQLite uniqueness violations to domain errors.
func mapConstraintError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "flowers.id"):
		return ErrExists
	case strings.Contains(msg, "flowers.priority"):
		return ErrPriorityTaken
	default:
		return fmt.Errorf("writing flower: %w", err)
	}
}
