package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
)

type CompanyRepository struct {
	pool *db.Pool
}

func NewCompanyRepository(pool *db.Pool) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

func (r *CompanyRepository) Create(ctx context.Context, c *model.Company) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO companies (id, name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5)
	`, id, c.Name, c.Email, c.Phone, c.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CompanyRepository) Get(ctx context.Context, id string) (model.Company, error) {
	var c model.Company
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, email, COALESCE(phone, ''), status, created_at
		FROM companies
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &c.CreatedAt)
	return c, err
}

func (r *CompanyRepository) List(ctx context.Context, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, email, COALESCE(phone, ''), status, created_at
		FROM companies
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *CompanyRepository) SetStatus(ctx context.Context, id, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE companies
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *CompanyRepository) CreateMember(ctx context.Context, m *model.Member) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO members (id, company_id, name, email, role)
		VALUES ($1, $2, $3, $4, $5)
	`, id, m.CompanyID, m.Name, m.Email, m.Role)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CompanyRepository) ListMembers(ctx context.Context, companyID string, limit int) ([]model.Member, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, name, email, role, created_at
		FROM members
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.Name, &m.Email, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *CompanyRepository) MemberBelongsToCompany(ctx context.Context, memberID, companyID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM members WHERE id = $1 AND company_id = $2
		)
	`, memberID, companyID).Scan(&exists)
	return exists, err
}

func (r *CompanyRepository) CreateAccessCard(ctx context.Context, card *model.AccessCard) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_cards (id, member_id, card_number, pin_hash, active)
		VALUES ($1, $2, $3, $4, $5)
	`, id, card.MemberID, card.CardNumber, card.PinHash, card.Active)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CompanyRepository) GetAccessCardByNumber(ctx context.Context, cardNumber string) (model.AccessCard, error) {
	var card model.AccessCard
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, member_id::text, card_number, pin_hash, active, created_at
		FROM access_cards
		WHERE card_number = $1
	`, cardNumber).Scan(&card.ID, &card.MemberID, &card.CardNumber, &card.PinHash, &card.Active, &card.CreatedAt)
	return card, err
}

func (r *CompanyRepository) DeactivateAccessCard(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE access_cards
		SET active = false, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
