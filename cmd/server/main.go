package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/spotwave/mediaops/internal/auth"
	"github.com/spotwave/mediaops/internal/config"
	"github.com/spotwave/mediaops/internal/db"
	"github.com/spotwave/mediaops/internal/ingestion"
	"github.com/spotwave/mediaops/internal/jobs"
	"github.com/spotwave/mediaops/internal/license"
	"github.com/spotwave/mediaops/internal/middleware"
	"github.com/spotwave/mediaops/internal/repository"
	"github.com/spotwave/mediaops/internal/storage"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".", log)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	if err := db.RunMigrations(ctx, conn.Pool, "./migrations"); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	store, err := storage.NewLocalStore(cfg.Storage.Dir)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize upload storage")
	}

	importRepo := repository.NewImportRepository(conn.Pool)
	entryRepo := repository.NewEntryRepository(conn.Pool, cfg.Ingest.BatchSize)
	campaignRepo := repository.NewCampaignRepository(conn.Pool)
	mediaPlanRepo := repository.NewMediaPlanRepository(conn.Pool)
	licenseRepo := repository.NewLicenseRepository(conn.Pool)

	matcher := ingestion.NewMatcher(campaignRepo, mediaPlanRepo, log)
	queue := jobs.NewQueue(conn.Pool)
	service := ingestion.NewService(
		importRepo,
		entryRepo,
		matcher,
		store,
		conn,
		queue,
		cfg.Ingest.InlineThresholdBytes,
		log,
	)

	worker := jobs.NewWorker(conn.Pool, func(ctx context.Context, importID uuid.UUID) error {
		_, err := service.Process(ctx, importID)
		return err
	}, jobs.WorkerOptions{PollInterval: cfg.Worker.PollInterval}, log)

	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("import worker stopped")
		}
	}()

	gate := license.NewGate(licenseRepo, log)
	handler := ingestion.NewHandler(service, importRepo)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(auth.TenantMiddleware))
	api.Use(mux.MiddlewareFunc(gate.Middleware))
	handler.Register(api)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	root := middleware.Logging(log)(middleware.Recovery(log)(corsHandler.Handler(router)))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      root,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
