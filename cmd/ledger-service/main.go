package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/cache"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/consumers"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/events"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/handler"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/repository"
	"github.com/pharmachain/pharmachain-backend/internal/ledger/service"
	"github.com/pharmachain/pharmachain-backend/pkg/config"
	"github.com/pharmachain/pharmachain-backend/pkg/database"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/messaging"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("ledger-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("ledger-service", cfg.Server.Environment)
	log.Info().Msg("starting Ledger Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := repository.EnsureSchema(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue("ledger-service"); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	// Redis holding projection
	holdingCache := cache.NewHoldingCache(&cfg.Redis, log)
	defer holdingCache.Close()

	// Initialize event publisher
	publisher, err := events.NewLedgerEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	transferRepo := repository.NewTransferRepository(db, ledgerRepo)
	requestRepo := repository.NewRequestRepository(db)
	partyCacheRepo := repository.NewPartyCacheRepository(db)

	// Initialize services
	itemService := service.NewItemService(db, itemRepo, ledgerRepo, partyCacheRepo, publisher, log)
	holdingService := service.NewHoldingService(ledgerRepo, holdingCache, log)
	orchestrator := service.NewTransferOrchestrator(transferRepo, itemRepo, partyCacheRepo, holdingCache, publisher, log)
	workflow := service.NewRequestWorkflow(requestRepo, itemRepo, partyCacheRepo, publisher, log)

	// Initialize handlers
	itemHandler := handler.NewItemHandler(itemService, log)
	holdingHandler := handler.NewHoldingHandler(holdingService, log)
	transferHandler := handler.NewTransferHandler(orchestrator, log)
	requestHandler := handler.NewRequestHandler(workflow, log)

	// Start party event consumer
	partyConsumer, err := consumers.NewPartyEventConsumer(rmq, partyCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create party event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := partyConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start party event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.PartyContext) // Extract party identity from gateway headers

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "ledger-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
			"redis":    holdingCache.Health(r.Context()),
		})
	})

	// API routes
	r.Route("/api/v1/ledger", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.With(httputil.RequireCapability(permissions.CapItemRead)).Get("/", itemHandler.List)
			r.With(httputil.RequireCapability(permissions.CapItemCreate)).Post("/", itemHandler.Create)
			r.With(httputil.RequireCapability(permissions.CapItemRead)).Get("/expiring", itemHandler.Expiring)
			r.With(httputil.RequireCapability(permissions.CapItemRead)).Get("/{id}", itemHandler.Get)
			r.With(httputil.RequireCapability(permissions.CapItemUpdate)).Patch("/{id}/price", itemHandler.CorrectPrice)
		})

		r.Route("/holdings", func(r chi.Router) {
			r.Use(httputil.RequireCapability(permissions.CapHoldingRead))
			r.Get("/", holdingHandler.List)
			r.Get("/history", holdingHandler.History)
			r.Post("/rebuild", holdingHandler.Rebuild)
			r.Get("/{itemID}", holdingHandler.Get)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.With(httputil.RequireCapability(permissions.CapTransferPropose)).Post("/", transferHandler.Propose)
			r.With(httputil.RequireCapability(permissions.CapTransferPropose)).Post("/fifo", transferHandler.SendFIFO)
			r.With(httputil.RequireCapability(permissions.CapTransferCommit)).Post("/commit-lots", transferHandler.CommitLots)
			r.Get("/", transferHandler.List)
			r.Get("/{id}", transferHandler.Get)
			r.With(httputil.RequireCapability(permissions.CapTransferCommit)).Post("/{id}/commit", transferHandler.Commit)
			r.With(httputil.RequireCapability(permissions.CapTransferReject)).Post("/{id}/reject", transferHandler.Reject)
		})

		r.Route("/requests", func(r chi.Router) {
			r.With(httputil.RequireCapability(permissions.CapRequestCreate)).Post("/", requestHandler.Create)
			r.Get("/", requestHandler.List)
			r.Get("/{id}", requestHandler.Get)
			r.With(httputil.RequireCapability(permissions.CapRequestDecide)).Post("/{id}/decide", requestHandler.Decide)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
