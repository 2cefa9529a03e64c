package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
)

type TicketRepository struct {
	pool *db.Pool
}

func NewTicketRepository(pool *db.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tickets (id, company_id, subject, description, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, t.CompanyID, t.Subject, t.Description, t.Priority, t.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *TicketRepository) ListByCompany(ctx context.Context, companyID string, status string, limit int) ([]model.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, subject, description, priority, status, created_at
		FROM tickets
		WHERE company_id = $1
			AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, companyID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Subject, &t.Description, &t.Priority, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *TicketRepository) SetStatus(ctx context.Context, companyID, id, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET status = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, id, companyID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
