package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"github.com/Kerhoff/chorebot/internal/api"
	"github.com/Kerhoff/chorebot/internal/approval"
	"github.com/Kerhoff/chorebot/internal/catalog"
	"github.com/Kerhoff/chorebot/internal/clock"
	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/handlers"
	"github.com/Kerhoff/chorebot/internal/metrics"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository/sqlstore"
	"github.com/Kerhoff/chorebot/internal/service"
	"github.com/Kerhoff/chorebot/internal/storage"
	"github.com/Kerhoff/chorebot/internal/telegram"
	"github.com/Kerhoff/chorebot/pkg/logger"
)

func main() {
	envFile := pflag.String("env-file", ".env", "file with environment variables to load first")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogJSON)
	l.Info("Starting ChoreBot...")

	loc, err := cfg.Location()
	if err != nil {
		l.Fatalf("Failed to load timezone: %v", err)
	}

	// Database
	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}
	if *migrateOnly {
		l.Info("Migrations applied")
		return
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Proof storage
	var proofs storage.Storage
	if cfg.ProofBucket != "" {
		gcs, err := storage.NewGCS(ctx, cfg.ProofBucket)
		if err != nil {
			l.Fatalf("Failed to open proof bucket: %v", err)
		}
		defer gcs.Close()
		proofs = gcs
	} else {
		local, err := storage.NewLocal(cfg.UploadsDir)
		if err != nil {
			l.Fatalf("Failed to open uploads directory: %v", err)
		}
		proofs = local
	}

	// Checklist baseline
	baseline, err := catalog.LoadBaseline(cfg.CatalogFile)
	if err != nil {
		l.Fatalf("Failed to load checklist baseline: %v", err)
	}

	// Repositories
	familyRepo := sqlstore.NewFamilyRepository(db)
	userRepo := sqlstore.NewUserRepository(db)
	checklistRepo := sqlstore.NewChecklistRepository(db)
	completionRepo := sqlstore.NewCompletionRepository(db)
	extraRepo := sqlstore.NewExtraTaskRepository(db)
	trackingRepo := sqlstore.NewApprovalMessageRepository(db)

	// Telegram bot
	bot, err := telegram.NewBot(cfg.TelegramToken, proofs, l)
	if err != nil {
		l.Fatalf("Failed to create Telegram bot: %v", err)
	}

	// Core
	m := metrics.New()
	clk := clock.Real(loc)
	cat := catalog.New(checklistRepo, baseline, l)
	coord := approval.NewCoordinator(approval.Stores{
		Users:       userRepo,
		Completions: completionRepo,
		Extras:      extraRepo,
		Tracking:    trackingRepo,
	}, cat, bot, clk, l,
		approval.WithMetrics(m),
		approval.WithUnmarkPolicy(approval.UnmarkPolicy(cfg.UnmarkPolicy)),
	)

	// Service layer
	svc := service.New(l, clk, bot, familyRepo, userRepo, completionRepo, extraRepo, cat, coord)

	// Register command handlers
	bot.RegisterCommand("start", handlers.NewStartHandler(svc, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	// Family handlers
	bot.RegisterCommand("newfamily", handlers.NewNewFamilyHandler(svc, l))
	bot.RegisterCommand("join", handlers.NewJoinHandler(svc, l))
	bot.RegisterCommand("invite", handlers.NewInviteHandler(svc, l))
	bot.RegisterCommand("password", handlers.NewPasswordHandler(svc, l))
	bot.RegisterCommand("resetfamily", handlers.NewResetFamilyHandler(svc, l))

	// Child handlers
	bot.RegisterCommand("checklist", handlers.NewChecklistHandler(svc, l))
	bot.RegisterCommand("done", handlers.NewDoneHandler(svc, l))
	bot.RegisterCommand("extra", handlers.NewExtraHandler(svc, l))
	bot.RegisterCommand("undo", handlers.NewUndoHandler(svc, l))

	// Parent handlers
	bot.RegisterCommand("report", handlers.NewReportHandler(svc, l))
	bot.RegisterCommand("history", handlers.NewHistoryHandler(svc, l))
	bot.RegisterCommand("export", handlers.NewExportHandler(svc, l))
	bot.RegisterCommand("pending", handlers.NewPendingHandler(svc, l))
	bot.RegisterCommand("addextra", handlers.NewAddExtraHandler(svc, l))
	bot.RegisterCommand("tasks", handlers.NewTasksHandler(svc, l))
	bot.RegisterCommand("task", handlers.NewTaskHandler(svc, l))

	// Decision buttons
	decisions := handlers.NewDecisionHandler(svc, l)
	bot.RegisterCallback(string(models.VerdictApprove), decisions)
	bot.RegisterCallback(string(models.VerdictReject), decisions)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Start weekly digest scheduler
	go svc.StartDigestScheduler(ctx, service.DigestSchedule{
		Weekday: time.Weekday(cfg.DigestWeekday),
		Hour:    cfg.DigestHour,
	})

	// Start metrics server
	metricsLog := logger.Component(l, "metrics")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.PrometheusPort,
		Handler: metricsMux,
	}

	go func() {
		metricsLog.Infof("Metrics server listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metricsLog.Errorf("Metrics server error: %v", err)
		}
	}()

	// Start HTTP server for the web app
	apiLog := logger.Component(l, "api")
	apiServer := api.NewServer(svc, proofs, cfg.TelegramToken, l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		apiLog.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			apiLog.Errorf("HTTP server error: %v", err)
		}
	}()

	// Start Telegram bot polling
	go func() {
		if err := bot.Start(ctx); err != nil {
			logger.Component(l, "telegram").Errorf("Bot error: %v", err)
		}
	}()

	l.WithField("bot", bot.Username()).Info("ChoreBot started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	l.Info("ChoreBot stopped")
}
