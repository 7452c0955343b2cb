package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"wacampaign/internal/config"
	"wacampaign/internal/metrics"
	"wacampaign/internal/queue"
	"wacampaign/internal/repository"
	"wacampaign/internal/scheduler"
	"wacampaign/internal/service"
	"wacampaign/internal/whatsapp"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize repositories and services
	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewContactRepository(db)
	templateSvc := service.NewTemplateService(repository.NewTemplateRepository(db))
	sender := newSender(cfg, logger)
	deliverySvc := service.NewDeliveryService(contactRepo, templateSvc, sender, logger.Named("delivery"))
	webhookSvc := service.NewWebhookService(contactRepo, repository.NewInboundMessageRepository(db), logger.Named("webhook"))
	logger.Info("services initialized", zap.String("sender_mode", cfg.Worker.SenderMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(
		scheduler.Config{
			RateLimit:    cfg.Worker.RateLimit,
			PollInterval: cfg.Worker.PollInterval,
		},
		contactRepo,
		campaignRepo,
		deliverySvc,
		scheduler.WithLocker(repository.NewAdvisoryLocker(db, repository.BulkSendLockKey)),
		scheduler.WithMetrics(m),
		scheduler.WithLogger(logger.Named("scheduler")),
	)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	// Connect to RabbitMQ for webhook events
	conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), logger.Named("amqp"))
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	consumer, err := queue.NewConsumer(conn, cfg.RabbitMQ.WebhookQueue,
		webhookHandler(webhookSvc, m),
		queue.WithPermanentErrors(func(err error) bool { return errors.Is(err, service.ErrMalformedEvent) }),
		queue.WithConsumerLogger(logger.Named("consumer")),
	)
	if err != nil {
		logger.Fatal("failed to create consumer", zap.Error(err))
	}
	if err := consumer.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer", zap.Error(err))
	}

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Server.MetricsPort,
		Handler:           metricsMux(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server starting", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("worker started",
		zap.Int("rate_limit", cfg.Worker.RateLimit),
		zap.Duration("poll_interval", cfg.Worker.PollInterval),
		zap.String("webhook_queue", cfg.RabbitMQ.WebhookQueue),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	sched.Stop()
	consumer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}

	logger.Info("worker stopped")
}

// webhookHandler applies one queued webhook event and counts the outcome
func webhookHandler(svc *service.WebhookService, m *metrics.Metrics) queue.Handler {
	return func(ctx context.Context, body []byte) error {
		stats, err := svc.HandleEvent(ctx, body)
		switch {
		case errors.Is(err, service.ErrMalformedEvent):
			m.WebhookEvents.WithLabelValues("processed", "malformed").Inc()
			return err
		case err != nil:
			m.WebhookEvents.WithLabelValues("processed", "error").Inc()
			return err
		}

		m.WebhookEvents.WithLabelValues("processed", "ok").Inc()
		zap.L().Debug("webhook event applied",
			zap.Int("receipts_applied", stats.ReceiptsApplied),
			zap.Int("receipts_ignored", stats.ReceiptsIgnored),
			zap.Int("messages_stored", stats.MessagesStored),
			zap.Int("messages_duplicated", stats.MessagesDuped),
		)
		return nil
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// newSender picks the provider the scheduler delivers through
func newSender(cfg *config.Config, logger *zap.Logger) service.Sender {
	if cfg.Worker.SenderMode == config.SenderModeSimulated {
		logger.Warn("using simulated sender", zap.Float64("success_rate", cfg.Worker.SimulatedSuccessRate))
		return service.NewSimulatedSender(cfg.Worker.SimulatedSuccessRate)
	}
	return whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.APIURL,
		APIVersion:    cfg.WhatsApp.APIVersion,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		Timeout:       cfg.WhatsApp.HTTPTimeout,
	}, nil, logger.Named("whatsapp"))
}
