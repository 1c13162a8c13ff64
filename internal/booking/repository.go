package booking

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labkeeper/labkeeper/internal/billing"
	"github.com/labkeeper/labkeeper/internal/platform/db"
)

// ErrNotFound indicates the reservation does not exist.
var ErrNotFound = errors.New("booking: reservation not found")

// Repository persists reservations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations the service runs inside a single
// transaction. Locking the equipment first serialises concurrent create
// attempts on the same resource, which is what keeps the overlap check and
// the insert atomic.
type TxRepository interface {
	LockEquipment(ctx context.Context, equipmentID string) error
	ListNonCancelled(ctx context.Context, equipmentID string) ([]Reservation, error)
	Insert(ctx context.Context, r Reservation) error
	GetForUpdate(ctx context.Context, id string) (Reservation, error)
	Update(ctx context.Context, r Reservation) error
	EmitUsage(ctx context.Context, u billing.UsageRecord) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const reservationColumns = `id, principal_id, company_id, equipment_id, project_id, start_time, end_time, actual_start_time, actual_end_time, status, note, created_at, updated_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	err := row.Scan(&res.ID, &res.PrincipalID, &res.CompanyID, &res.EquipmentID, &res.ProjectID,
		&res.StartTime, &res.EndTime, &res.ActualStartTime, &res.ActualEndTime, &res.Status,
		&res.Note, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}

// LockEquipment takes the per-equipment advisory lock for the remainder of
// the transaction.
func (t *txRepo) LockEquipment(ctx context.Context, equipmentID string) error {
	return db.AdvisoryLock(ctx, t.tx, equipmentLockKey(equipmentID))
}

// equipmentLockKey folds the equipment id into the int64 key space used by
// pg_advisory_xact_lock.
func equipmentLockKey(equipmentID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("booking:equipment:" + equipmentID))
	return int64(h.Sum64())
}

func (t *txRepo) ListNonCancelled(ctx context.Context, equipmentID string) ([]Reservation, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE equipment_id = $1 AND status <> $2
		ORDER BY start_time`, equipmentID, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, r Reservation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reservations (id, principal_id, company_id, equipment_id, project_id, start_time, end_time, actual_start_time, actual_end_time, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		r.ID, r.PrincipalID, r.CompanyID, r.EquipmentID, r.ProjectID, r.StartTime, r.EndTime,
		r.ActualStartTime, r.ActualEndTime, r.Status, r.Note, r.CreatedAt)
	return err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id string) (Reservation, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return res, err
}

func (t *txRepo) Update(ctx context.Context, r Reservation) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE reservations
		SET actual_start_time = $2, actual_end_time = $3, status = $4, note = $5, updated_at = $6
		WHERE id = $1`,
		r.ID, r.ActualStartTime, r.ActualEndTime, r.Status, r.Note, r.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) EmitUsage(ctx context.Context, u billing.UsageRecord) error {
	return billing.InsertTx(ctx, t.tx, u)
}

// Get fetches a reservation outside any transaction.
func (r *Repository) Get(ctx context.Context, id string) (Reservation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return res, err
}

// List returns reservations, optionally limited to one piece of equipment,
// newest first.
func (r *Repository) List(ctx context.Context, equipmentID string, limit int) ([]Reservation, error) {
	if limit <= 0 {
		limit = 200
	}
	var (
		rows pgx.Rows
		err  error
	)
	if equipmentID != "" {
		rows, err = r.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE equipment_id = $1 ORDER BY start_time DESC LIMIT $2`, equipmentID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY start_time DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
