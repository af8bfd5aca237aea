package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ottoferraz/clinic-scheduler/cmd/mainconfig"
	"github.com/ottoferraz/clinic-scheduler/internal/api/router"
	"github.com/ottoferraz/clinic-scheduler/internal/audit"
	"github.com/ottoferraz/clinic-scheduler/internal/availability"
	"github.com/ottoferraz/clinic-scheduler/internal/calendar"
	appconfig "github.com/ottoferraz/clinic-scheduler/internal/config"
	"github.com/ottoferraz/clinic-scheduler/internal/escalation"
	"github.com/ottoferraz/clinic-scheduler/internal/notification"
	"github.com/ottoferraz/clinic-scheduler/internal/notify"
	"github.com/ottoferraz/clinic-scheduler/internal/observability/metrics"
	"github.com/ottoferraz/clinic-scheduler/internal/patient"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting clinic-scheduler API server", "env", cfg.Env, "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Escalation and audit stores ride database/sql over the pgx driver.
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	var publisher *notification.Publisher
	if cfg.UseMemoryQueue {
		logger.Info("using in-memory notification queue")
		publisher = notification.NewPublisher(notification.NewMemoryQueue(256), logger)
	} else {
		publisher = notification.NewPublisher(notification.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationQueueURL), logger)
	}

	clock := calendar.SystemClock{}
	patients := patient.NewStore(pool)
	appointments := scheduling.NewStore(pool)
	auditTrail := audit.NewService(db, logger)
	notifier := notification.NewNotifier(publisher, patients, logger, cfg.ClinicName, cfg.DoctorPhone)

	schedSvc := scheduling.NewService(
		appointments,
		availability.NewCalculator(clock),
		clock,
		auditTrail,
		notifier,
		logger,
		scheduling.WithMetrics(metrics.NewSchedulingMetrics(nil)),
	)

	var email notify.EmailSender
	if cfg.SendGridAPIKey != "" {
		email = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.AlertFromEmail,
			FromName:  cfg.AlertFromName,
		}, logger)
	} else {
		email = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.AlertFromEmail,
			FromName:  cfg.AlertFromName,
		}, logger)
	}
	escSvc := escalation.NewService(db, email, cfg.StaffAlertEmail, cfg.IntentConfidenceThreshold, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		Appointments:   scheduling.NewHandler(schedSvc, logger),
		Escalations:    escalation.NewHandler(escSvc, logger),
		Audit:          audit.NewHandler(auditTrail, logger),
		MetricsHandler: promhttp.Handler(),
		StaffJWTSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
