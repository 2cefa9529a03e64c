package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskhive/deskhive/libs/events"
	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/storage"
)

// Bookings without a billing membership fall back to the free cap.
const defaultFreeMonthlyBookings = 10

type BookingHandler struct {
	repo   *storage.BookingRepository
	outbox *events.Outbox
	logger *slog.Logger
}

func NewBookingHandler(repo *storage.BookingRepository, outbox *events.Outbox, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{repo: repo, outbox: outbox, logger: logger}
}

type createBookingRequest struct {
	RoomID      string `json:"room_id"`
	CompanyID   string `json:"company_id"`
	MemberName  string `json:"member_name"`
	MemberEmail string `json:"member_email"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type bookingItem struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	MemberName  string `json:"member_name"`
	MemberEmail string `json:"member_email,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.RoomID = strings.TrimSpace(req.RoomID)
	req.CompanyID = resolveCompanyID(r, req.CompanyID)
	req.MemberName = strings.TrimSpace(req.MemberName)
	if req.RoomID == "" || req.CompanyID == "" || req.MemberName == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "room_id, company_id and member_name are required")
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid start_time")
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid end_time")
		return
	}
	if !endTime.After(startTime) {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "end_time must be after start_time")
		return
	}

	booking := &model.Booking{
		RoomID:      req.RoomID,
		CompanyID:   req.CompanyID,
		MemberName:  req.MemberName,
		MemberEmail: strings.TrimSpace(req.MemberEmail),
		StartTime:   startTime,
		EndTime:     endTime,
		Status:      "pending",
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	overCap, err := h.monthlyCapReached(ctx, tx, booking.CompanyID, booking.StartTime)
	if err != nil {
		h.logger.Error("entitlements check failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	if overCap {
		httpx.WriteError(w, http.StatusPaymentRequired, "monthly booking limit reached (upgrade required)")
		return
	}

	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			httpx.WriteError(w, http.StatusConflict, "room already booked for that time")
			return
		}
		h.logger.Error("create booking failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	if err := h.repo.MarkSlotsBooked(ctx, tx, booking.RoomID, booking.StartTime, booking.EndTime); err != nil {
		h.logger.Error("mark slots booked failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"booking_id":   id,
		"room_id":      booking.RoomID,
		"company_id":   booking.CompanyID,
		"member_name":  booking.MemberName,
		"member_email": booking.MemberEmail,
		"start_time":   booking.StartTime.UTC().Format(time.RFC3339),
		"end_time":     booking.EndTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		httpx.WriteInternalError(w)
		return
	}
	if err := h.outbox.Insert(ctx, tx, events.Event{
		AggregateType: "booking",
		AggregateID:   id,
		EventType:     "backoffice.booking.confirmed.v1",
		Payload:       payload,
	}); err != nil {
		h.logger.Error("outbox insert failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"booking_id": id})
}

func (h *BookingHandler) monthlyCapReached(ctx context.Context, tx pgx.Tx, companyID string, start time.Time) (bool, error) {
	max := defaultFreeMonthlyBookings
	ent, ok, err := h.repo.GetEntitlements(ctx, tx, companyID)
	if err != nil {
		return false, err
	}
	if ok && ent.MaxMonthlyBookings > 0 {
		max = ent.MaxMonthlyBookings
	}
	if max <= 0 {
		return false, nil
	}

	startUTC := start.UTC()
	monthStart := time.Date(startUTC.Year(), startUTC.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	cnt, err := h.repo.CountLiveByCompanyInRange(ctx, tx, companyID, monthStart, monthEnd)
	if err != nil {
		return false, err
	}
	return cnt >= max, nil
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.Reason = strings.TrimSpace(req.Reason)
	companyID := resolveCompanyID(r, "")
	if req.BookingID == "" || companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "booking_id and company identity are required")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, companyID, req.BookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "booking not found")
			return
		}
		h.logger.Error("load booking failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	// Cancelling twice is a no-op, not an error.
	if booking.Status == "cancelled" && booking.CancelledAt != nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"booking_id":   booking.ID,
			"status":       "cancelled",
			"cancelled_at": booking.CancelledAt.UTC().Format(time.RFC3339),
		})
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, companyID, booking.ID, req.Reason)
	if err != nil {
		h.logger.Error("cancel booking failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	if err := h.repo.ReleaseSlots(ctx, tx, booking.RoomID, booking.StartTime, booking.EndTime); err != nil {
		h.logger.Error("release slots failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.logger.Error("commit failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"booking_id":   booking.ID,
		"status":       "cancelled",
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyID := resolveCompanyID(r, r.URL.Query().Get("company_id"))
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id is required")
		return
	}

	bookings, err := h.repo.ListByCompany(r.Context(), companyID, queryLimit(r, 50))
	if err != nil {
		h.logger.Error("list bookings failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		item := bookingItem{
			ID:          b.ID,
			RoomID:      b.RoomID,
			MemberName:  b.MemberName,
			MemberEmail: b.MemberEmail,
			StartTime:   b.StartTime.UTC().Format(time.RFC3339),
			EndTime:     b.EndTime.UTC().Format(time.RFC3339),
			Status:      b.Status,
			CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
