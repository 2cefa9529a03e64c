package main

import (
	"context"
	"encoding/json"
	"net/http"
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
	"github.com/deskhive/deskhive/services/scheduler-service/internal/sweep"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduler-service")
	port, err := config.Port("PORT", "8087")
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

	repo := sweep.NewRepository(pool)
	outbox := events.NewOutbox(pool)
	publisher := events.NewPublisher(pool, outbox, logger, events.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	sweeper := sweep.NewSweeper(pool, repo, outbox, logger, sweep.DefaultThresholds)
	go sweeper.RunDaily(ctx, config.Int("SWEEP_HOUR_UTC", 6))

	// Notification outcomes flow back into the reminder log so the
	// delivery status reflects what actually happened.
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		inbox := events.NewInbox(pool)
		deliveryConsumer := events.NewConsumer(logger, inbox, events.ConsumerConfig{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "scheduler-service"),
			Topics: []string{
				"notification.sent.v1",
				"notification.failed.v1",
			},
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				ContractID    string `json:"contract_id"`
				DaysRemaining int    `json:"days_remaining"`
				DueOn         string `json:"due_on"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.ContractID == "" || payload.DueOn == "" {
				// Not a contract reminder outcome (e.g. booking confirmation mail).
				return nil
			}
			dueOn, err := time.ParseInLocation("2006-01-02", payload.DueOn, time.UTC)
			if err != nil {
				logger.Error("invalid due_on in event", "err", err, "topic", msg.Topic)
				return nil
			}
			status := "sent"
			if msg.Topic == "notification.failed.v1" {
				status = "failed"
			}
			return repo.SetDeliveryStatus(ctx, payload.ContractID, payload.DaysRemaining, dueOn, status)
		})
		go deliveryConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/internal/sweep", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := sweeper.Sweep(r.Context(), time.Now().UTC()); err != nil {
			logger.Error("manual sweep failed", "err", err)
			httpx.WriteInternalError(w)
			return
		}
		httpx.WriteMessage(w, http.StatusOK, "sweep completed")
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduler")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
