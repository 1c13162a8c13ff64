package billing

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateUsage indicates a usage record was already emitted for the
// reservation. The unique index on reservation_id enforces the
// exactly-once guarantee at the store level.
var ErrDuplicateUsage = errors.New("billing: usage record already recorded for reservation")

// Repository persists usage records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const usageColumns = `id, reservation_id, principal_id, company_id, equipment_id, duration_minutes, cycles, recorded_at`

// InsertTx writes a usage record inside the caller's transaction so checkout
// and emission commit or roll back as one unit.
func InsertTx(ctx context.Context, tx pgx.Tx, u UsageRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO usage_records (id, reservation_id, principal_id, company_id, equipment_id, duration_minutes, cycles, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.ReservationID, u.PrincipalID, u.CompanyID, u.EquipmentID, u.DurationMinutes, u.Cycles, u.RecordedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUsage
		}
		return err
	}
	return nil
}

// List returns usage records, newest first, optionally limited to one piece
// of equipment.
func (r *Repository) List(ctx context.Context, equipmentID string, limit int) ([]UsageRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + usageColumns + ` FROM usage_records`
	args := []any{}
	if equipmentID != "" {
		query += ` WHERE equipment_id = $1`
		args = append(args, equipmentID)
	}
	query += ` ORDER BY recorded_at DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageRecord
	for rows.Next() {
		var u UsageRecord
		if err := rows.Scan(&u.ID, &u.ReservationID, &u.PrincipalID, &u.CompanyID, &u.EquipmentID, &u.DurationMinutes, &u.Cycles, &u.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
