package equipment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists equipment in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const equipmentColumns = `id, name, category, rate, rate_unit, unit_minutes, rounding_mode, requires_booking, note, created_at, updated_at`

func scanEquipment(row pgx.Row) (Equipment, error) {
	var e Equipment
	err := row.Scan(&e.ID, &e.Name, &e.Category, &e.Rate, &e.RateUnit, &e.UnitMinutes, &e.RoundingMode, &e.RequiresBooking, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Insert stores a new equipment row.
func (r *Repository) Insert(ctx context.Context, e Equipment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO equipment (id, name, category, rate, rate_unit, unit_minutes, rounding_mode, requires_booking, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		e.ID, e.Name, e.Category, e.Rate, e.RateUnit, e.UnitMinutes, e.RoundingMode, e.RequiresBooking, e.Note, e.CreatedAt)
	return err
}

// Update rewrites an existing equipment row.
func (r *Repository) Update(ctx context.Context, e Equipment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE equipment
		SET name = $2, category = $3, rate = $4, rate_unit = $5, unit_minutes = $6, rounding_mode = $7, requires_booking = $8, note = $9, updated_at = $10
		WHERE id = $1`,
		e.ID, e.Name, e.Category, e.Rate, e.RateUnit, e.UnitMinutes, e.RoundingMode, e.RequiresBooking, e.Note, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches equipment by id.
func (r *Repository) Get(ctx context.Context, id string) (Equipment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id)
	e, err := scanEquipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Equipment{}, ErrNotFound
	}
	return e, err
}

// List returns all equipment ordered by name.
func (r *Repository) List(ctx context.Context) ([]Equipment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+equipmentColumns+` FROM equipment ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
