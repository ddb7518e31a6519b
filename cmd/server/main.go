package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/byggsak/be-cc-claims/internal/client"
	"github.com/byggsak/be-cc-claims/internal/config"
	"github.com/byggsak/be-cc-claims/internal/database"
	"github.com/byggsak/be-cc-claims/internal/handler"
	"github.com/byggsak/be-cc-claims/internal/justify"
	"github.com/byggsak/be-cc-claims/internal/logger"
	"github.com/byggsak/be-cc-claims/internal/middleware"
	"github.com/byggsak/be-cc-claims/internal/natsclient"
	"github.com/byggsak/be-cc-claims/internal/repository"
	"github.com/byggsak/be-cc-claims/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Change Claims Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize NATS (optional; events are dropped when disabled)
	var nats *natsclient.Client
	if cfg.NATS.Enabled {
		nats, err = natsclient.Connect(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nats.Close()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS disabled; notifications will not be published")
	}
	notifier := client.NewNotificationPublisher(nats, log.Logger)

	// Initialize identity client
	var identity service.IdentityClient
	if identityURL := os.Getenv("IDENTITY_URL"); identityURL != "" {
		identity = client.NewIdentityHTTPClient(identityURL)
		log.Info().Str("identity_url", identityURL).Msg("Identity client initialized")
	} else {
		identity = client.NoopIdentityClient{}
		log.Warn().Msg("IDENTITY_URL not set; approval steps created unassigned")
	}

	// Initialize repositories
	caseRepo := repository.NewCaseRepository(db)
	packageRepo := repository.NewPackageRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Initialize services
	claimService := service.NewClaimService(caseRepo, auditRepo, justify.PlainComposer{}, notifier, log)
	approvalService := service.NewApprovalService(packageRepo, auditRepo, identity, notifier, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(claimService, approvalService, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Case and track routes
	mux.HandleFunc("/api/v1/cases", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.GetCase(w, r)
		case http.MethodPost:
			httpHandler.CreateCase(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/tracks/submit", httpHandler.SubmitTrack)
	mux.HandleFunc("/api/v1/tracks/respond", httpHandler.RespondTrack)
	mux.HandleFunc("/api/v1/tracks/revisions", httpHandler.ListRevisions)
	mux.HandleFunc("/api/v1/determinations/preview", httpHandler.PreviewDetermination)

	// Approval routes
	mux.HandleFunc("/api/v1/packages", httpHandler.GetPackage)
	mux.HandleFunc("/api/v1/packages/submit", httpHandler.SubmitPackage)
	mux.HandleFunc("/api/v1/packages/approve", httpHandler.ApproveStep)
	mux.HandleFunc("/api/v1/packages/reject", httpHandler.RejectStep)
	mux.HandleFunc("/api/v1/packages/restore", httpHandler.RestorePackage)
	mux.HandleFunc("/api/v1/approvals/pending", httpHandler.PendingApprovals)
	mux.HandleFunc("/api/v1/approvals/history", httpHandler.ApprovalHistory)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
