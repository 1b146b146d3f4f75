package preset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for preset persistence.
type Repository interface {
	List(ctx context.Context) ([]Preset, error)
	GetByID(ctx context.Context, id string) (*Preset, error)
	Create(ctx context.Context, p *Preset) error
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed preset repository.
// The presets table is created by the migrations package.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const presetColumns = `id, name, manufacturer, baud, parity, invert,
	connector, protocol, description, sort_order, created_at, updated_at`

// List returns all presets in catalog order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Preset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+presetColumns+` FROM presets ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("querying presets: %w", err)
	}
	defer rows.Close()

	var presets []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning preset row: %w", err)
		}
		presets = append(presets, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preset rows: %w", err)
	}
	return presets, nil
}

// GetByID returns a single preset.
// Returns ErrPresetNotFound if the preset does not exist.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Preset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+presetColumns+` FROM presets WHERE id = ?`, id)
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPresetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning preset: %w", err)
	}
	return p, nil
}

// Create validates and inserts a preset.
// Returns ErrPresetExists when the id is taken.
func (r *SQLiteRepository) Create(ctx context.Context, p *Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Second)
	const query = `INSERT INTO presets (id, name, manufacturer, baud, parity, invert,
		connector, protocol, description, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Manufacturer, p.Baud, p.Parity, boolToInt(p.Invert),
		p.Connector, p.Protocol, p.Description, p.SortOrder,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPresetExists
		}
		return fmt.Errorf("inserting preset %s: %w", p.ID, err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Count returns the number of stored presets.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM presets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting presets: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreset(row rowScanner) (*Preset, error) {
	var p Preset
	var invert int
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &p.Manufacturer, &p.Baud, &p.Parity, &invert,
		&p.Connector, &p.Protocol, &p.Description, &p.SortOrder, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Invert = invert != 0
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// isUniqueViolation reports a PRIMARY KEY or UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses the RFC 3339 timestamps written by this package and by
// the schema defaults. Zero time is returned for anything else.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
