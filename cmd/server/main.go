// Sports Data Agent - conversational geospatial analytics server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/fieldlab/sportsdesk/internal/agent"
	"github.com/fieldlab/sportsdesk/internal/api"
	"github.com/fieldlab/sportsdesk/internal/arcgis"
	"github.com/fieldlab/sportsdesk/internal/config"
	"github.com/fieldlab/sportsdesk/internal/dataset"
	"github.com/fieldlab/sportsdesk/internal/history"
	"github.com/fieldlab/sportsdesk/internal/llm"
	"github.com/fieldlab/sportsdesk/internal/middleware"
	"github.com/fieldlab/sportsdesk/internal/tools"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if cfg.Debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	slog.Info("Starting server", "port", cfg.Port, "provider", cfg.LLMProvider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	provider, err := llm.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize language model provider", "error", err)
		os.Exit(1)
	}
	slog.Info("Language model provider ready", "provider", cfg.LLMProvider)

	loader := dataset.NewLoader(cfg.AthletesCSVPath, cfg.EventsCSVPath)
	if _, err := loader.Load(dataset.Athletes); err != nil {
		slog.Warn("Athletes dataset not loadable at startup", "path", cfg.AthletesCSVPath, "error", err)
	}
	if _, err := loader.Load(dataset.Events); err != nil {
		slog.Warn("Events dataset not loadable at startup", "path", cfg.EventsCSVPath, "error", err)
	}

	gis := arcgis.NewClient(cfg.ArcGISAPIKey)
	registry := tools.NewRegistry(gis, loader, tools.Sources{
		StoresLayerURL: cfg.StoresLayerURL,
		EventsLayerURL: cfg.EventsLayerURL,
	})

	store := history.New(cfg.SessionTTL, cfg.SessionCapacity)
	store.StartSweeper(ctx, time.Minute)
	slog.Info("Session store ready", "ttl", cfg.SessionTTL, "capacity", cfg.SessionCapacity)

	conversationLogger, err := agent.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	ag := agent.New(provider, registry, store, conversationLogger)
	handler := api.NewHandler(ag, loader, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r)

	// Create server.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // chat turns can run several model rounds
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
