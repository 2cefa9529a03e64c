package sweep

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
)

type Contract struct {
	ID           string
	CompanyID    string
	CompanyEmail string
	Name         string
	EndDate      time.Time
	Status       string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListExpiringContracts returns live contracts ending within the widest
// threshold window. Terminated and expired contracts never get reminders.
func (r *Repository) ListExpiringContracts(ctx context.Context, today time.Time, maxDays int) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id::text, c.company_id::text, co.email, c.name, c.end_date, c.status
		FROM contracts c
		JOIN companies co ON co.id = c.company_id
		WHERE c.status NOT IN ('terminated', 'expired')
			AND c.end_date >= $1
			AND c.end_date <= $2
		ORDER BY c.end_date ASC
	`, today, today.AddDate(0, 0, maxDays))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.CompanyEmail, &c.Name, &c.EndDate, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// InsertReminderLog claims a (contract, threshold, due date) pair. The
// unique constraint makes the insert the dedup point; false means some
// other sweep got there first.
func (r *Repository) InsertReminderLog(ctx context.Context, tx pgx.Tx, contractID string, daysRemaining int, dueOn time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO contract_reminder_log (contract_id, days_remaining, due_on, delivery_status)
		VALUES ($1, $2, $3, 'queued')
		ON CONFLICT (contract_id, days_remaining, due_on) DO NOTHING
	`, contractID, daysRemaining, dueOn)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetDeliveryStatus is driven by notification.sent/failed events.
func (r *Repository) SetDeliveryStatus(ctx context.Context, contractID string, daysRemaining int, dueOn time.Time, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contract_reminder_log
		SET delivery_status = $4, updated_at = now()
		WHERE contract_id = $1 AND days_remaining = $2 AND due_on = $3
	`, contractID, daysRemaining, dueOn, status)
	return err
}
