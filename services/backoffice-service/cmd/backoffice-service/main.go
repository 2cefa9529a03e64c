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
	"github.com/deskhive/deskhive/services/backoffice-service/internal/docstore"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/handlers"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/storage"
)

func newDocStore(addr, token, grpcAddr string) docstore.Store {
	if grpcAddr != "" {
		if store, err := docstore.NewGRPCStore(grpcAddr); err == nil && store != nil {
			return store
		}
	}
	if addr != "" {
		return docstore.NewHTTPStore(addr, token)
	}
	return docstore.NewNoopStore()
}

func main() {
	service := config.String("SERVICE_NAME", "backoffice-service")
	port, err := config.Port("PORT", "8082")
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

	companyRepo := storage.NewCompanyRepository(pool)
	roomRepo := storage.NewRoomRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	contractRepo := storage.NewContractRepository(pool)
	ticketRepo := storage.NewTicketRepository(pool)

	outbox := events.NewOutbox(pool)
	publisher := events.NewPublisher(pool, outbox, logger, events.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	// Billing feeds the entitlements cache; booking creation enforces
	// the monthly cap from it.
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		inbox := events.NewInbox(pool)
		entitlementsConsumer := events.NewConsumer(logger, inbox, events.ConsumerConfig{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "backoffice-service"),
			Topics: []string{
				"billing.membership.activated.v1",
				"billing.membership.canceled.v1",
			},
		}, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				CompanyID          string `json:"company_id"`
				Plan               string `json:"plan"`
				MaxMonthlyBookings int    `json:"max_monthly_bookings"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.CompanyID == "" || payload.Plan == "" || payload.MaxMonthlyBookings <= 0 {
				logger.Error("missing required event fields", "topic", msg.Topic)
				return nil
			}
			return bookingRepo.UpsertEntitlements(ctx, payload.CompanyID, payload.Plan, payload.MaxMonthlyBookings)
		})
		go entitlementsConsumer.Run(ctx)
	}

	store := newDocStore(
		config.String("DOCSTORE_URL", ""),
		config.String("DOCSTORE_TOKEN", ""),
		config.String("DOCSTORE_GRPC_ADDR", ""),
	)
	logger.Info("document store configured", "provider", store.ProviderID())

	companyHandler := handlers.NewCompanyHandler(companyRepo, logger)
	roomHandler := handlers.NewRoomHandler(roomRepo, logger)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, outbox, logger)
	contractHandler := handlers.NewContractHandler(contractRepo, logger)
	documentHandler := handlers.NewDocumentHandler(contractRepo, store, logger)
	ticketHandler := handlers.NewTicketHandler(ticketRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/companies", methodSwitch(companyHandler.Create, companyHandler.List))
	mux.HandleFunc("/api/v1/companies/get", companyHandler.Get)
	mux.HandleFunc("/api/v1/members", methodSwitch(companyHandler.CreateMember, companyHandler.ListMembers))
	mux.HandleFunc("/api/v1/access-cards", companyHandler.CreateAccessCard)
	mux.HandleFunc("/api/v1/access-cards/deactivate", companyHandler.DeactivateAccessCard)
	mux.HandleFunc("/api/v1/access-cards/verify", companyHandler.VerifyAccessCard)
	mux.HandleFunc("/api/v1/rooms", methodSwitch(roomHandler.Create, roomHandler.List))
	mux.HandleFunc("/api/v1/rooms/slots/regenerate", roomHandler.RegenerateSlots)
	mux.HandleFunc("/api/v1/public/rooms/slots", roomHandler.FreeSlots)
	mux.HandleFunc("/api/v1/bookings", methodSwitch(bookingHandler.Create, bookingHandler.List))
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/contracts", methodSwitch(contractHandler.Create, contractHandler.List))
	mux.HandleFunc("/api/v1/contracts/status", contractHandler.SetStatus)
	mux.HandleFunc("/api/v1/contracts/delete", contractHandler.Delete)
	mux.HandleFunc("/api/v1/documents", methodSwitch(documentHandler.Upload, documentHandler.List))
	mux.HandleFunc("/api/v1/documents/delete", documentHandler.Delete)
	mux.HandleFunc("/api/v1/tickets", methodSwitch(ticketHandler.Create, ticketHandler.List))
	mux.HandleFunc("/api/v1/tickets/status", ticketHandler.SetStatus)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "backoffice")
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

// methodSwitch routes POST to create and GET to list on a shared path.
func methodSwitch(post, get http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			post(w, r)
		case http.MethodGet:
			get(w, r)
		default:
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
