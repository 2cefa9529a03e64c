package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/schedule"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/storage"
)

const defaultHorizonDays = 30

type RoomHandler struct {
	repo   *storage.RoomRepository
	logger *slog.Logger
}

func NewRoomHandler(repo *storage.RoomRepository, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{repo: repo, logger: logger}
}

type windowInput struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type createRoomRequest struct {
	Name                string        `json:"name"`
	Floor               int           `json:"floor"`
	Capacity            int           `json:"capacity"`
	HourlyRate          string        `json:"hourly_rate"`
	SlotDurationMinutes int           `json:"slot_duration_minutes"`
	Windows             []windowInput `json:"windows"`
	HorizonDays         int           `json:"horizon_days"`
}

type roomItem struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Floor               int    `json:"floor"`
	Capacity            int    `json:"capacity"`
	HourlyRate          string `json:"hourly_rate"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
	CreatedAt           string `json:"created_at"`
}

type slotItem struct {
	ID        string `json:"id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Create inserts the room, its weekly windows and the slots generated
// over the horizon in one transaction.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	if req.SlotDurationMinutes <= 0 {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "slot_duration_minutes must be positive")
		return
	}
	if req.Capacity <= 0 {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "capacity must be positive")
		return
	}

	windows := make([]model.AvailabilityWindow, 0, len(req.Windows))
	genWindows := make([]schedule.Window, 0, len(req.Windows))
	for _, win := range req.Windows {
		if win.Weekday < 0 || win.Weekday > 6 {
			httpx.WriteError(w, http.StatusUnprocessableEntity, "weekday must be 0-6")
			return
		}
		if win.StartMinute < 0 || win.EndMinute > 24*60 || win.StartMinute >= win.EndMinute {
			httpx.WriteError(w, http.StatusUnprocessableEntity, "window minutes must satisfy 0 <= start < end <= 1440")
			return
		}
		windows = append(windows, model.AvailabilityWindow{
			Weekday:     win.Weekday,
			StartMinute: win.StartMinute,
			EndMinute:   win.EndMinute,
		})
		genWindows = append(genWindows, schedule.Window{
			Weekday:     win.Weekday,
			StartMinute: win.StartMinute,
			EndMinute:   win.EndMinute,
		})
	}

	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = defaultHorizonDays
	}

	slots, err := schedule.Generate(genWindows, time.Duration(req.SlotDurationMinutes)*time.Minute, time.Now().UTC(), horizon)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid slot duration")
		return
	}

	room := &model.Room{
		Name:                req.Name,
		Floor:               req.Floor,
		Capacity:            req.Capacity,
		HourlyRate:          strings.TrimSpace(req.HourlyRate),
		SlotDurationMinutes: req.SlotDurationMinutes,
	}
	id, err := h.repo.CreateWithSchedule(r.Context(), room, windows, slots)
	if err != nil {
		if storage.IsDuplicate(err) {
			httpx.WriteError(w, http.StatusConflict, "room with this name already exists")
			return
		}
		h.logger.Error("create room failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"room_id":         id,
		"slots_generated": len(slots),
	})
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rooms, err := h.repo.List(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.logger.Error("list rooms failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]roomItem, 0, len(rooms))
	for _, room := range rooms {
		items = append(items, roomItem{
			ID:                  room.ID,
			Name:                room.Name,
			Floor:               room.Floor,
			Capacity:            room.Capacity,
			HourlyRate:          room.HourlyRate,
			SlotDurationMinutes: room.SlotDurationMinutes,
			CreatedAt:           room.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type regenerateSlotsRequest struct {
	RoomID      string `json:"room_id"`
	HorizonDays int    `json:"horizon_days"`
}

// RegenerateSlots re-materializes slots from the stored windows. Safe to
// call repeatedly; existing slot rows are left untouched.
func (h *RoomHandler) RegenerateSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req regenerateSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.RoomID = strings.TrimSpace(req.RoomID)
	if req.RoomID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "room_id is required")
		return
	}
	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = defaultHorizonDays
	}

	room, err := h.repo.Get(r.Context(), req.RoomID)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "room not found")
			return
		}
		h.logger.Error("get room failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	stored, err := h.repo.ListWindows(r.Context(), room.ID)
	if err != nil {
		h.logger.Error("list windows failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	genWindows := make([]schedule.Window, 0, len(stored))
	for _, win := range stored {
		genWindows = append(genWindows, schedule.Window{
			Weekday:     win.Weekday,
			StartMinute: win.StartMinute,
			EndMinute:   win.EndMinute,
		})
	}

	slots, err := schedule.Generate(genWindows, time.Duration(room.SlotDurationMinutes)*time.Minute, time.Now().UTC(), horizon)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid slot duration")
		return
	}

	if err := h.repo.RegenerateSlots(r.Context(), room.ID, slots); err != nil {
		h.logger.Error("regenerate slots failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"room_id":          room.ID,
		"slots_considered": len(slots),
	})
}

// FreeSlots is the public listing used by the booking UI. Cancelled
// bookings do not block a slot.
func (h *RoomHandler) FreeSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	roomID := strings.TrimSpace(r.URL.Query().Get("room_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if roomID == "" || dateStr == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "room_id and date are required")
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.repo.ListFreeSlots(r.Context(), roomID, day, day.AddDate(0, 0, 1))
	if err != nil {
		h.logger.Error("list free slots failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			ID:        s.ID,
			StartTime: s.StartTime.UTC().Format(time.RFC3339),
			EndTime:   s.EndTime.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
