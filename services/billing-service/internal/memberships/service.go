package memberships

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/events"
	"github.com/deskhive/deskhive/services/billing-service/internal/plans"
	"github.com/deskhive/deskhive/services/billing-service/internal/storage"
)

// Service encapsulates membership state transitions and the side effects
// (outbox events). Keeping this out of HTTP handlers makes it reusable for
// both the Stripe and the local webhook flows.
type Service struct {
	repo   *storage.Repository
	outbox *events.Outbox
}

func New(repo *storage.Repository, outbox *events.Outbox) *Service {
	return &Service{repo: repo, outbox: outbox}
}

func (s *Service) ApplyActivated(ctx context.Context, tx pgx.Tx, companyID, plan string, activatedAt time.Time, provider string, stripeCustomerID string, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetMembershipForUpdate(ctx, tx, companyID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertMembership(ctx, tx, storage.Membership{
		CompanyID:            companyID,
		Plan:                 plan,
		Status:               "active",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	// Only emit when the effective entitlement changes (plan/status).
	// Provider ID updates alone shouldn't fan out.
	if ok && existing.Status == "active" && existing.Plan == plan {
		return nil
	}

	limits := plans.LimitsForPlan(plan)
	payload, err := json.Marshal(map[string]any{
		"company_id":           companyID,
		"plan":                 limits.Plan,
		"max_monthly_bookings": limits.MaxMonthlyBookings,
		"activated_at":         activatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return s.outbox.Insert(ctx, tx, events.Event{
		AggregateType: "membership",
		AggregateID:   companyID,
		EventType:     "billing.membership.activated.v1",
		Payload:       payload,
	})
}

func (s *Service) ApplyCanceled(ctx context.Context, tx pgx.Tx, companyID string, canceledAt time.Time, provider string, stripeCustomerID string, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetMembershipForUpdate(ctx, tx, companyID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertMembership(ctx, tx, storage.Membership{
		CompanyID:            companyID,
		Plan:                 "free",
		Status:               "canceled",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	// Only emit when the effective entitlement changes (plan/status).
	if ok && existing.Status == "canceled" && existing.Plan == "free" {
		return nil
	}

	limits := plans.LimitsForPlan("free")
	payload, err := json.Marshal(map[string]any{
		"company_id":           companyID,
		"plan":                 limits.Plan,
		"max_monthly_bookings": limits.MaxMonthlyBookings,
		"canceled_at":          canceledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return s.outbox.Insert(ctx, tx, events.Event{
		AggregateType: "membership",
		AggregateID:   companyID,
		EventType:     "billing.membership.canceled.v1",
		Payload:       payload,
	})
}
