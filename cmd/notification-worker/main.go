package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/ottoferraz/clinic-scheduler/cmd/mainconfig"
	"github.com/ottoferraz/clinic-scheduler/internal/calendar"
	appconfig "github.com/ottoferraz/clinic-scheduler/internal/config"
	"github.com/ottoferraz/clinic-scheduler/internal/notification"
	"github.com/ottoferraz/clinic-scheduler/internal/observability/metrics"
	"github.com/ottoferraz/clinic-scheduler/internal/patient"
	"github.com/ottoferraz/clinic-scheduler/internal/scheduling"
	"github.com/ottoferraz/clinic-scheduler/internal/whatsapp"
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
	logger.Info("starting notification worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
		"sweep_interval", cfg.SweepInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	channel, err := whatsapp.New(whatsapp.Config{
		BaseURL:       cfg.WhatsAppBaseURL,
		AccessToken:   cfg.WhatsAppAccessToken,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to create whatsapp client", "error", err)
		os.Exit(1)
	}

	appointments := scheduling.NewStore(pool)
	patients := patient.NewStore(pool)
	ledger := notification.NewLedger(pool)
	notificationMetrics := metrics.NewNotificationMetrics(nil)

	dispatcher := notification.NewDispatcher(appointments, patients, ledger, channel, logger, notificationMetrics)

	clock := calendar.SystemClock{}
	var worker *notification.Worker
	var publisher *notification.Publisher
	if cfg.UseMemoryQueue {
		logger.Info("using in-memory notification queue")
		queue := notification.NewMemoryQueue(256)
		publisher = notification.NewPublisher(queue, logger)
		worker = notification.NewWorker(dispatcher, queue, logger, notification.WithWorkerCount(cfg.WorkerCount))
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := notification.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationQueueURL)
		publisher = notification.NewPublisher(queue, logger)
		worker = notification.NewWorker(dispatcher, queue, logger, notification.WithWorkerCount(cfg.WorkerCount))
	}

	sweepOpts := []notification.SweeperOption{notification.WithSweepMetrics(notificationMetrics)}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer func() { _ = redisClient.Close() }()
		sweepOpts = append(sweepOpts, notification.WithSweepLock(notification.NewSweepLock(redisClient, cfg.SweepLockTTL)))
	}
	sweeper := notification.NewSweeper(appointments, patients, ledger, publisher, clock, cfg.ClinicName, logger, sweepOpts...)

	worker.Start(ctx)
	go runSweepLoop(ctx, sweeper, cfg.SweepInterval, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("notification worker shutting down")
	cancel()

	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("worker did not drain in time")
	}
}

// runSweepLoop runs one sweep immediately, then one per interval. The sweep
// itself is idempotent; a failed run is only logged because the next tick
// retries the same windows.
func runSweepLoop(ctx context.Context, sweeper *notification.Sweeper, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := sweeper.Run(ctx); err != nil {
			logger.Error("reminder sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
