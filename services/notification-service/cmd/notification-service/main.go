package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/deskhive/deskhive/libs/config"
	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/libs/events"
	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/libs/kafkax"
	otelx "github.com/deskhive/deskhive/libs/otel"
	"github.com/deskhive/deskhive/libs/runtime"
	"github.com/deskhive/deskhive/services/notification-service/internal/email"
	"github.com/deskhive/deskhive/services/notification-service/internal/storage"
)

type reminderDuePayload struct {
	ContractID    string `json:"contract_id"`
	CompanyID     string `json:"company_id"`
	CompanyEmail  string `json:"company_email"`
	ContractName  string `json:"contract_name"`
	EndDate       string `json:"end_date"`
	DaysRemaining int    `json:"days_remaining"`
	DueOn         string `json:"due_on"`
}

type bookingConfirmedPayload struct {
	BookingID   string `json:"booking_id"`
	RoomID      string `json:"room_id"`
	CompanyID   string `json:"company_id"`
	MemberName  string `json:"member_name"`
	MemberEmail string `json:"member_email"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

func writeOutcome(ctx context.Context, pool *db.Pool, outbox *events.Outbox, aggregateID string, payload map[string]any, failed bool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	eventType := "notification.sent.v1"
	tsField := "sent_at"
	if failed {
		eventType = "notification.failed.v1"
		tsField = "failed_at"
	}
	payload[tsField] = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := outbox.Insert(ctx, tx, events.Event{
		AggregateType: "notification",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	notificationsRepo := storage.NewRepository(pool)
	outbox := events.NewOutbox(pool)
	publisher := events.NewPublisher(pool, outbox, logger, events.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@deskhive.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	// Recipients matching this suffix fail on purpose (integration testing).
	failSuffix := config.String("NOTIFICATION_FAIL_SUFFIX", "")

	handleReminderDue := func(ctx context.Context, msg kafka.Message) error {
		var payload reminderDuePayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid reminder payload", "err", err)
			return nil
		}
		if payload.ContractID == "" || payload.CompanyEmail == "" || payload.EndDate == "" {
			logger.Error("missing reminder fields")
			return nil
		}

		subject := fmt.Sprintf("Contract %q expires in %d days", payload.ContractName, payload.DaysRemaining)
		body := fmt.Sprintf(
			"Your contract %q ends on %s. Contact us to renew before it expires.",
			payload.ContractName, payload.EndDate,
		)

		status := "sent"
		failureReason := ""
		if failSuffix != "" && strings.HasSuffix(payload.CompanyEmail, failSuffix) {
			status = "failed"
			failureReason = "simulated failure"
		} else if err := emailSender.Send(payload.CompanyEmail, subject, body); err != nil {
			status = "failed"
			failureReason = err.Error()
			logger.Error("email send failed", "err", err, "recipient", payload.CompanyEmail)
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			Kind:        "contract_reminder",
			AggregateID: payload.ContractID,
			CompanyID:   payload.CompanyID,
			Recipient:   payload.CompanyEmail,
			Payload: map[string]any{
				"contract_name":  payload.ContractName,
				"end_date":       payload.EndDate,
				"days_remaining": payload.DaysRemaining,
			},
			Status: status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		// due_on keys the reminder-log row the scheduler will update.
		outcome := map[string]any{
			"contract_id":    payload.ContractID,
			"company_id":     payload.CompanyID,
			"days_remaining": payload.DaysRemaining,
			"due_on":         payload.DueOn,
		}
		if failureReason != "" {
			outcome["error_reason"] = failureReason
		}
		if err := writeOutcome(ctx, pool, outbox, payload.ContractID, outcome, status == "failed"); err != nil {
			logger.Error("failed to enqueue notification outcome", "err", err)
			return err
		}

		logger.Info("reminder processed", "contract_id", payload.ContractID, "days_remaining", payload.DaysRemaining, "status", status)
		return nil
	}

	handleBookingConfirmed := func(ctx context.Context, msg kafka.Message) error {
		var payload bookingConfirmedPayload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid booking payload", "err", err)
			return nil
		}
		if payload.BookingID == "" || payload.MemberEmail == "" {
			// Bookings without an email get no confirmation mail.
			return nil
		}

		subject := "Your room booking is confirmed"
		body := fmt.Sprintf(
			"Hi %s, your booking from %s to %s is confirmed.",
			payload.MemberName, payload.StartTime, payload.EndTime,
		)

		status := "sent"
		failureReason := ""
		if err := emailSender.Send(payload.MemberEmail, subject, body); err != nil {
			status = "failed"
			failureReason = err.Error()
			logger.Error("email send failed", "err", err, "recipient", payload.MemberEmail)
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			Kind:        "booking_confirmation",
			AggregateID: payload.BookingID,
			CompanyID:   payload.CompanyID,
			Recipient:   payload.MemberEmail,
			Payload: map[string]any{
				"room_id":    payload.RoomID,
				"start_time": payload.StartTime,
				"end_time":   payload.EndTime,
			},
			Status: status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		outcome := map[string]any{
			"booking_id": payload.BookingID,
			"company_id": payload.CompanyID,
		}
		if failureReason != "" {
			outcome["error_reason"] = failureReason
		}
		if err := writeOutcome(ctx, pool, outbox, payload.BookingID, outcome, status == "failed"); err != nil {
			logger.Error("failed to enqueue notification outcome", "err", err)
			return err
		}

		logger.Info("booking confirmation processed", "booking_id", payload.BookingID, "status", status)
		return nil
	}

	inbox := events.NewInbox(pool)
	eventConsumer := events.NewConsumer(logger, inbox, events.ConsumerConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics: []string{
			"scheduler.contract.reminder.due.v1",
			"backoffice.booking.confirmed.v1",
		},
	}, func(ctx context.Context, msg kafka.Message) error {
		switch msg.Topic {
		case "scheduler.contract.reminder.due.v1":
			return handleReminderDue(ctx, msg)
		case "backoffice.booking.confirmed.v1":
			return handleBookingConfirmed(ctx, msg)
		default:
			logger.Warn("unexpected topic", "topic", msg.Topic)
			return nil
		}
	})
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
