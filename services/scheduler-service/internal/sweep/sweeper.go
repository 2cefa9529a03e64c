package sweep

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/libs/events"
)

// Reminder thresholds in days before contract end.
var DefaultThresholds = []int{4, 7, 15, 30}

type Sweeper struct {
	pool       *db.Pool
	repo       *Repository
	outbox     *events.Outbox
	logger     *slog.Logger
	thresholds []int
}

func NewSweeper(pool *db.Pool, repo *Repository, outbox *events.Outbox, logger *slog.Logger, thresholds []int) *Sweeper {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	return &Sweeper{
		pool:       pool,
		repo:       repo,
		outbox:     outbox,
		logger:     logger,
		thresholds: thresholds,
	}
}

// DueThreshold returns the matching threshold for a contract ending on
// endDate when evaluated on today, or false. Matching is an exact
// calendar-date comparison: end_date == today + threshold days.
func DueThreshold(endDate, today time.Time, thresholds []int) (int, bool) {
	end := dateOnly(endDate)
	base := dateOnly(today)
	for _, t := range thresholds {
		if end.Equal(base.AddDate(0, 0, t)) {
			return t, true
		}
	}
	return 0, false
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RunDaily fires Sweep once per UTC day at the given hour. A minute
// ticker stands in for cron; the firedOn guard keeps restarts from
// double-firing within the same day (the reminder-log constraint would
// absorb it anyway).
func (s *Sweeper) RunDaily(ctx context.Context, hourUTC int) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var firedOn time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			nowUTC := now.UTC()
			if nowUTC.Hour() != hourUTC {
				continue
			}
			today := dateOnly(nowUTC)
			if firedOn.Equal(today) {
				continue
			}
			firedOn = today
			if err := s.Sweep(ctx, today); err != nil {
				s.logger.Error("daily sweep failed", "err", err)
			}
		}
	}
}

// Sweep walks every live contract, matches it against the thresholds
// and enqueues one reminder per newly due (contract, threshold) pair.
// Each pair runs in its own transaction so a single failure never
// aborts the rest; the unique reminder-log constraint is the only
// dedup guard, which makes concurrent sweeps safe.
func (s *Sweeper) Sweep(ctx context.Context, today time.Time) error {
	today = dateOnly(today)

	contracts, err := s.repo.ListExpiringContracts(ctx, today, maxThreshold(s.thresholds))
	if err != nil {
		return err
	}

	var enqueued, skipped, failed int
	for _, c := range contracts {
		threshold, ok := DueThreshold(c.EndDate, today, s.thresholds)
		if !ok {
			continue
		}
		inserted, err := s.process(ctx, c, threshold, today)
		if err != nil {
			failed++
			s.logger.Error("reminder enqueue failed", "err", err, "contract_id", c.ID, "days_remaining", threshold)
			continue
		}
		if inserted {
			enqueued++
		} else {
			skipped++
		}
	}

	s.logger.Info("sweep finished",
		"date", today.Format("2006-01-02"),
		"contracts", len(contracts),
		"enqueued", enqueued,
		"duplicates", skipped,
		"failed", failed,
	)
	return nil
}

func (s *Sweeper) process(ctx context.Context, c Contract, threshold int, today time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := s.repo.InsertReminderLog(ctx, tx, c.ID, threshold, today)
	if err != nil {
		return false, err
	}
	if !inserted {
		// Another sweep already claimed this pair.
		return false, tx.Commit(ctx)
	}

	payload, err := json.Marshal(map[string]any{
		"contract_id":    c.ID,
		"company_id":     c.CompanyID,
		"company_email":  c.CompanyEmail,
		"contract_name":  c.Name,
		"end_date":       dateOnly(c.EndDate).Format("2006-01-02"),
		"days_remaining": threshold,
		"due_on":         today.Format("2006-01-02"),
	})
	if err != nil {
		return false, err
	}
	if err := s.outbox.Insert(ctx, tx, events.Event{
		AggregateType: "contract",
		AggregateID:   c.ID,
		EventType:     "scheduler.contract.reminder.due.v1",
		Payload:       payload,
	}); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func maxThreshold(thresholds []int) int {
	max := 0
	for _, t := range thresholds {
		if t > max {
			max = t
		}
	}
	return max
}
