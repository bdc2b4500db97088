package bus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository persists bus configurations.
type Repository interface {
	List(ctx context.Context) ([]Config, error)
	GetByID(ctx context.Context, id string) (*Config, error)
	Save(ctx context.Context, cfg Config) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository is the SQLite-backed Repository implementation.
// Serial and Modbus parameter columns coexist in one row; the type
// column decides which set is meaningful.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all persisted bus configs ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Config, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, port, baud, host, tcp_port, unit_id, connect_timeout_ms
		 FROM buses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing buses: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var configs []Config
	for rows.Next() {
		cfg, err := scanConfig(rows.Scan)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bus rows: %w", err)
	}
	return configs, nil
}

// GetByID returns one bus config.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Config, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, type, port, baud, host, tcp_port, unit_id, connect_timeout_ms
		 FROM buses WHERE id = ?`, id)
	cfg, err := scanConfig(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBusNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save upserts a bus config.
func (r *SQLiteRepository) Save(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO buses (id, type, port, baud, host, tcp_port, unit_id, connect_timeout_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			port = excluded.port,
			baud = excluded.baud,
			host = excluded.host,
			tcp_port = excluded.tcp_port,
			unit_id = excluded.unit_id,
			connect_timeout_ms = excluded.connect_timeout_ms`,
		cfg.ID, cfg.Type,
		cfg.Serial.Port, cfg.Serial.Baud,
		cfg.Modbus.Host, cfg.Modbus.Port, cfg.Modbus.UnitID, cfg.Modbus.ConnectTimeoutMS)
	if err != nil {
		return fmt.Errorf("saving bus %q: %w", cfg.ID, err)
	}
	return nil
}

// Delete removes a bus config.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM buses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting bus %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting bus %q: %w", id, err)
	}
	if n == 0 {
		return ErrBusNotFound
	}
	return nil
}

func scanConfig(scan func(dest ...any) error) (Config, error) {
	var cfg Config
	err := scan(&cfg.ID, &cfg.Type,
		&cfg.Serial.Port, &cfg.Serial.Baud,
		&cfg.Modbus.Host, &cfg.Modbus.Port, &cfg.Modbus.UnitID, &cfg.Modbus.ConnectTimeoutMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Config{}, err
	}
	if err != nil {
		return Config{}, fmt.Errorf("scanning bus row: %w", err)
	}
	return cfg, nil
}
