package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deskhive/deskhive/libs/db"
)

// Inbox deduplicates consumed events on their event_id. Record reports
// false when the event was seen before.
type Inbox struct {
	pool *db.Pool
}

func NewInbox(pool *db.Pool) *Inbox {
	return &Inbox{pool: pool}
}

func (i *Inbox) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := i.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
		return false, nil
	}

	return false, err
}
