package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
)

type ContractRepository struct {
	pool *db.Pool
}

func NewContractRepository(pool *db.Pool) *ContractRepository {
	return &ContractRepository{pool: pool}
}

func (r *ContractRepository) Create(ctx context.Context, c *model.Contract) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contracts (id, company_id, name, type, start_date, end_date, renewal_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, c.CompanyID, c.Name, c.Type, c.StartDate, c.EndDate, c.RenewalDate, c.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ContractRepository) Get(ctx context.Context, companyID, id string) (model.Contract, error) {
	var c model.Contract
	var renewal *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, name, type, start_date, end_date, renewal_date, status, created_at
		FROM contracts
		WHERE id = $1 AND company_id = $2
	`, id, companyID).Scan(&c.ID, &c.CompanyID, &c.Name, &c.Type, &c.StartDate, &c.EndDate, &renewal, &c.Status, &c.CreatedAt)
	if err != nil {
		return model.Contract{}, err
	}
	c.RenewalDate = renewal
	return c, nil
}

func (r *ContractRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]model.Contract, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, name, type, start_date, end_date, renewal_date, status, created_at
		FROM contracts
		WHERE company_id = $1
		ORDER BY end_date ASC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contract
	for rows.Next() {
		var c model.Contract
		var renewal *time.Time
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Type, &c.StartDate, &c.EndDate, &renewal, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.RenewalDate = renewal
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ContractRepository) SetStatus(ctx context.Context, companyID, id, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE contracts
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

func (r *ContractRepository) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM contracts
		WHERE id = $1 AND company_id = $2
	`, id, companyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ContractRepository) CreateDocument(ctx context.Context, d *model.Document) (string, error) {
	id := uuid.NewString()
	var contractID any
	if d.ContractID != "" {
		contractID = d.ContractID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO documents (id, company_id, contract_id, filename, content_type, size_bytes, object_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, d.CompanyID, contractID, d.Filename, d.ContentType, d.SizeBytes, d.ObjectURL)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ContractRepository) ListDocuments(ctx context.Context, companyID string, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, COALESCE(contract_id::text, ''), filename, content_type, size_bytes, object_url, created_at
		FROM documents
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.ContractID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.ObjectURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ContractRepository) DeleteDocument(ctx context.Context, companyID, id string) (string, error) {
	var objectURL string
	err := r.pool.QueryRow(ctx, `
		DELETE FROM documents
		WHERE id = $1 AND company_id = $2
		RETURNING object_url
	`, id, companyID).Scan(&objectURL)
	return objectURL, err
}
