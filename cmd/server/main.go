package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"closeout.app/engine/common/id"
	"closeout.app/engine/common/logger"
	"closeout.app/engine/common/otel"
	"closeout.app/engine/core/config"
	"closeout.app/engine/core/db"
	"closeout.app/engine/internal/chat"
	"closeout.app/engine/internal/http/middleware"
	httprouter "closeout.app/engine/internal/http/router"
	"closeout.app/engine/internal/scheduler"
	"closeout.app/engine/internal/service"
	"closeout.app/engine/internal/session"
	"closeout.app/engine/internal/sheets"
	"closeout.app/engine/internal/store"
	"closeout.app/engine/internal/tracker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "engine starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	if err := store.Migrate(ctx, database); err != nil {
		slog.ErrorContext(ctx, "failed to apply migrations", "error", err)
		os.Exit(1)
	}

	sessions, err := session.NewRedisStore(cfg.Redis.URL, cfg.Redis.SessionTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()
	slog.InfoContext(ctx, "redis connected")

	trackerClient, err := tracker.NewGitLabClient(cfg.Tracker.BaseURL, cfg.Tracker.Token)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create tracker client", "error", err)
		os.Exit(1)
	}
	if !cfg.Tracker.Enabled() {
		slog.WarnContext(ctx, "tracker token not configured, autofill will run unauthenticated")
	}

	chatTransport, err := chat.NewGateway(cfg.Chat.GatewayURL, cfg.Chat.APIKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create chat gateway client", "error", err)
		os.Exit(1)
	}

	var sheetsClient sheets.Client
	if cfg.Sheets.Enabled() {
		googleClient, err := sheets.NewGoogleClient(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range)
		if err != nil {
			slog.ErrorContext(ctx, "failed to create sheets client", "error", err)
			os.Exit(1)
		}
		sheetsClient = sheets.NewRetryingClient(googleClient, cfg.Sheets.MaxConcurrent, cfg.Sheets.RetryMaxElapsed)
		slog.InfoContext(ctx, "spreadsheet sync enabled", "spreadsheet_id", cfg.Sheets.SpreadsheetID)
	} else {
		slog.InfoContext(ctx, "spreadsheet sync disabled (no spreadsheet configured)")
	}

	stores := store.NewStores(database.Querier())

	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		sessions,
		trackerClient,
		chatTransport,
		sheetsClient,
		cfg,
	)

	sched := scheduler.New(services.Reminders(), cfg.Reminders.Interval)
	go sched.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, stores)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, stores *store.Stores) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, stores, httprouter.RouterConfig{
		WebhookSecret: cfg.Webhook.Secret,
		AdminAPIKey:   cfg.AdminAPIKey,
	})

	return router
}

const banner = `
 ██████╗██╗      ██████╗ ███████╗███████╗ ██████╗ ██╗   ██╗████████╗
██╔════╝██║     ██╔═══██╗██╔════╝██╔════╝██╔═══██╗██║   ██║╚══██╔══╝
██║     ██║     ██║   ██║███████╗█████╗  ██║   ██║██║   ██║   ██║
██║     ██║     ██║   ██║╚════██║██╔══╝  ██║   ██║██║   ██║   ██║
╚██████╗███████╗╚██████╔╝███████║███████╗╚██████╔╝╚██████╔╝   ██║
 ╚═════╝╚══════╝ ╚═════╝ ╚══════╝╚══════╝ ╚═════╝  ╚═════╝    ╚═╝
`
