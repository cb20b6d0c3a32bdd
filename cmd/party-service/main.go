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
	"github.com/pharmachain/pharmachain-backend/internal/party/events"
	"github.com/pharmachain/pharmachain-backend/internal/party/handler"
	"github.com/pharmachain/pharmachain-backend/internal/party/jwt"
	"github.com/pharmachain/pharmachain-backend/internal/party/repository"
	"github.com/pharmachain/pharmachain-backend/internal/party/service"
	"github.com/pharmachain/pharmachain-backend/pkg/config"
	"github.com/pharmachain/pharmachain-backend/pkg/database"
	"github.com/pharmachain/pharmachain-backend/pkg/httputil"
	"github.com/pharmachain/pharmachain-backend/pkg/logger"
	"github.com/pharmachain/pharmachain-backend/pkg/messaging"
	"github.com/pharmachain/pharmachain-backend/pkg/permissions"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("party-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("party-service", cfg.Server.Environment)
	log.Info().Msg("starting Party Service")

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

	// Initialize event publisher
	publisher, err := events.NewPartyEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize components
	partyRepo := repository.NewPartyRepository(db)
	jwtManager := jwt.NewManager(&cfg.JWT)
	partyService := service.NewPartyService(partyRepo, jwtManager, publisher, log)

	authHandler := handler.NewAuthHandler(partyService, log)
	partyHandler := handler.NewPartyHandler(partyService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "party-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Public auth routes
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
	})

	// Party directory routes (gateway stamps identity headers)
	r.Route("/api/v1/parties", func(r chi.Router) {
		r.Use(httputil.PartyContext)
		r.Get("/", partyHandler.List)
		r.Get("/me", partyHandler.Me)
		r.Put("/me", partyHandler.UpdateMe)
		r.Get("/{id}", partyHandler.Get)
		r.With(httputil.RequireCapability(permissions.CapPartyManage)).Post("/{id}/deactivate", partyHandler.Deactivate)
		r.With(httputil.RequireCapability(permissions.CapPartyManage)).Post("/{id}/reactivate", partyHandler.Reactivate)
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

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
