package storage

import (
	"context"
	"encoding/json"

	"github.com/deskhive/deskhive/libs/db"
)

type Notification struct {
	Kind        string // contract_reminder | booking_confirmation
	AggregateID string
	CompanyID   string
	Recipient   string
	Payload     map[string]any
	Status      string // sent | failed
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (kind, aggregate_id, company_id, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.Kind, n.AggregateID, n.CompanyID, n.Recipient, payload, n.Status)
	return err
}
