package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts the booking. The exclusion constraint on
// (room_id, tstzrange(start_time, end_time)) rejects overlapping live
// bookings; callers map that error with IsConflict.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(room_id, company_id, member_name, member_email, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, b.RoomID, b.CompanyID, b.MemberName, b.MemberEmail, b.StartTime, b.EndTime, b.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkSlotsBooked flips the covered slot rows so they disappear from the
// public listing. Runs inside the booking transaction.
func (r *BookingRepository) MarkSlotsBooked(ctx context.Context, tx pgx.Tx, roomID string, start, end time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE room_slots
		SET status = 'booked'
		WHERE room_id = $1
			AND start_time >= $2
			AND end_time <= $3
			AND status = 'available'
	`, roomID, start, end)
	return err
}

func (r *BookingRepository) ReleaseSlots(ctx context.Context, tx pgx.Tx, roomID string, start, end time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE room_slots
		SET status = 'available'
		WHERE room_id = $1
			AND start_time >= $2
			AND end_time <= $3
			AND status = 'booked'
	`, roomID, start, end)
	return err
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, companyID, bookingID string) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT id::text, room_id::text, company_id::text, member_name, member_email,
			start_time, end_time, status, cancelled_at, COALESCE(cancel_reason, ''), created_at
		FROM bookings
		WHERE id = $1 AND company_id = $2
		FOR UPDATE
	`, bookingID, companyID).Scan(
		&b.ID,
		&b.RoomID,
		&b.CompanyID,
		&b.MemberName,
		&b.MemberEmail,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, companyID, bookingID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $3
		WHERE id = $1 AND company_id = $2
		RETURNING cancelled_at
	`, bookingID, companyID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, room_id::text, company_id::text, member_name, member_email,
			start_time, end_time, status, cancelled_at, COALESCE(cancel_reason, ''), created_at
		FROM bookings
		WHERE company_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		var cancelledAt *time.Time
		if err := rows.Scan(
			&b.ID,
			&b.RoomID,
			&b.CompanyID,
			&b.MemberName,
			&b.MemberEmail,
			&b.StartTime,
			&b.EndTime,
			&b.Status,
			&cancelledAt,
			&b.CancelReason,
			&b.CreatedAt,
		); err != nil {
			return nil, err
		}
		b.CancelledAt = cancelledAt
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BookingRepository) CountLiveByCompanyInRange(ctx context.Context, tx pgx.Tx, companyID string, from, to time.Time) (int, error) {
	var cnt int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE company_id = $1
			AND status <> 'cancelled'
			AND start_time >= $2
			AND start_time < $3
	`, companyID, from, to).Scan(&cnt)
	return cnt, err
}

type Entitlements struct {
	CompanyID          string
	Plan               string
	MaxMonthlyBookings int
}

func (r *BookingRepository) GetEntitlements(ctx context.Context, tx pgx.Tx, companyID string) (Entitlements, bool, error) {
	var ent Entitlements
	err := tx.QueryRow(ctx, `
		SELECT company_id::text, plan, max_monthly_bookings
		FROM company_entitlements
		WHERE company_id = $1
	`, companyID).Scan(&ent.CompanyID, &ent.Plan, &ent.MaxMonthlyBookings)
	if err != nil {
		if IsNotFound(err) {
			return Entitlements{}, false, nil
		}
		return Entitlements{}, false, err
	}
	return ent, true, nil
}

// UpsertEntitlements is fed by billing membership events.
func (r *BookingRepository) UpsertEntitlements(ctx context.Context, companyID, plan string, maxMonthlyBookings int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO company_entitlements (company_id, plan, max_monthly_bookings)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_id) DO UPDATE
		SET plan = EXCLUDED.plan,
			max_monthly_bookings = EXCLUDED.max_monthly_bookings,
			updated_at = now()
	`, companyID, plan, maxMonthlyBookings)
	return err
}
