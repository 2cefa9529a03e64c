package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/schedule"
)

type RoomRepository struct {
	pool *db.Pool
}

func NewRoomRepository(pool *db.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func (r *RoomRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateWithSchedule inserts the room, its weekly windows and the
// materialized slots in one transaction. Any failure rolls back all of it.
func (r *RoomRepository) CreateWithSchedule(ctx context.Context, room *model.Room, windows []model.AvailabilityWindow, slots []schedule.Slot) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO rooms (id, name, floor, capacity, hourly_rate, slot_duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, room.Name, room.Floor, room.Capacity, room.HourlyRate, room.SlotDurationMinutes)
	if err != nil {
		return "", err
	}

	for _, w := range windows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_windows (room_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4)
		`, id, w.Weekday, w.StartMinute, w.EndMinute); err != nil {
			return "", err
		}
	}

	if err := insertSlots(ctx, tx, id, slots); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// RegenerateSlots re-materializes slots for a room. The unique
// (room_id, start_time) index plus ON CONFLICT DO NOTHING makes this
// safe to run repeatedly.
func (r *RoomRepository) RegenerateSlots(ctx context.Context, roomID string, slots []schedule.Slot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertSlots(ctx, tx, roomID, slots); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertSlots(ctx context.Context, tx pgx.Tx, roomID string, slots []schedule.Slot) error {
	for _, s := range slots {
		if _, err := tx.Exec(ctx, `
			INSERT INTO room_slots (id, room_id, start_time, end_time, status)
			VALUES ($1, $2, $3, $4, 'available')
			ON CONFLICT (room_id, start_time) DO NOTHING
		`, uuid.NewString(), roomID, s.Start, s.End); err != nil {
			return err
		}
	}
	return nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (model.Room, error) {
	var room model.Room
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, floor, capacity, hourly_rate::text, slot_duration_minutes, created_at
		FROM rooms
		WHERE id = $1
	`, id).Scan(&room.ID, &room.Name, &room.Floor, &room.Capacity, &room.HourlyRate, &room.SlotDurationMinutes, &room.CreatedAt)
	return room, err
}

func (r *RoomRepository) List(ctx context.Context, limit int) ([]model.Room, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, floor, capacity, hourly_rate::text, slot_duration_minutes, created_at
		FROM rooms
		ORDER BY floor ASC, name ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Room
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Floor, &room.Capacity, &room.HourlyRate, &room.SlotDurationMinutes, &room.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *RoomRepository) ListWindows(ctx context.Context, roomID string) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT room_id::text, weekday, start_minute, end_minute
		FROM availability_windows
		WHERE room_id = $1
		ORDER BY weekday ASC, start_minute ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		var w model.AvailabilityWindow
		if err := rows.Scan(&w.RoomID, &w.Weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListFreeSlots returns available slots for a room in [from, to) that do
// not overlap a live booking. Cancelled bookings do not block.
func (r *RoomRepository) ListFreeSlots(ctx context.Context, roomID string, from, to time.Time) ([]model.RoomSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id::text, s.room_id::text, s.start_time, s.end_time, s.status
		FROM room_slots s
		WHERE s.room_id = $1
			AND s.status = 'available'
			AND s.start_time >= $2
			AND s.start_time < $3
			AND NOT EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.room_id = s.room_id
					AND b.status <> 'cancelled'
					AND b.start_time < s.end_time
					AND b.end_time > s.start_time
			)
		ORDER BY s.start_time ASC
	`, roomID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RoomSlot
	for rows.Next() {
		var s model.RoomSlot
		if err := rows.Scan(&s.ID, &s.RoomID, &s.StartTime, &s.EndTime, &s.Status); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
