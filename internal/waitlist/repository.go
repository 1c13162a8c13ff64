package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists waitlist entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, principal_id, company_id, equipment_id, start_time, end_time, status, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PrincipalID, &e.CompanyID, &e.EquipmentID, &e.StartTime, &e.EndTime, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Insert stores a new entry.
func (r *Repository) Insert(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO waitlist_entries (id, principal_id, company_id, equipment_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		e.ID, e.PrincipalID, e.CompanyID, e.EquipmentID, e.StartTime, e.EndTime, e.Status, e.CreatedAt)
	return err
}

// Get fetches an entry by id.
func (r *Repository) Get(ctx context.Context, id string) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// UpdateStatus moves an entry from one status to another. It reports
// ErrNotPending when the entry already left the expected status, so two
// concurrent transitions cannot both win.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE waitlist_entries SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, from, to, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// List returns entries, oldest first, optionally limited to one piece of
// equipment.
func (r *Repository) List(ctx context.Context, equipmentID string) ([]Entry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if equipmentID != "" {
		rows, err = r.pool.Query(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE equipment_id = $1 ORDER BY created_at`, equipmentID)
	} else {
		rows, err = r.pool.Query(ctx, `SELECT `+entryColumns+` FROM waitlist_entries ORDER BY created_at`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// OldestPendingOverlapping returns the longest-waiting pending entry whose
// requested interval overlaps the freed window.
func (r *Repository) OldestPendingOverlapping(ctx context.Context, equipmentID string, start, end time.Time) (Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE equipment_id = $1 AND status = $2 AND start_time < $4 AND end_time > $3
		ORDER BY created_at
		LIMIT 1`,
		equipmentID, StatusPending, start, end)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}
