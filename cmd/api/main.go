package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"wacampaign/internal/config"
	"wacampaign/internal/handler"
	"wacampaign/internal/metrics"
	"wacampaign/internal/queue"
	"wacampaign/internal/repository"
	"wacampaign/internal/service"
	"wacampaign/internal/whatsapp"
)

const version = "1.0.0"

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

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), logger.Named("amqp"))
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	publisher, err := queue.NewPublisher(conn, cfg.RabbitMQ.WebhookQueue)
	if err != nil {
		logger.Fatal("failed to create publisher", zap.Error(err))
	}
	logger.Info("connected to RabbitMQ", zap.String("queue", cfg.RabbitMQ.WebhookQueue))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewContactRepository(db)
	templateSvc := service.NewTemplateService(repository.NewTemplateRepository(db))
	sender := newSender(cfg, logger)
	campaignSvc := service.NewCampaignService(campaignRepo, contactRepo, templateSvc, sender, logger.Named("campaigns"))
	healthSvc := service.NewHealthService(db, conn, version)

	router := handler.NewRouter(handler.RouterDeps{
		Campaigns: campaignSvc,
		Templates: templateSvc,
		Health:    healthSvc,
		Publisher: publisher,
		Webhook: handler.WebhookConfig{
			AppSecret:     cfg.WhatsApp.AppSecret,
			VerifyToken:   cfg.WhatsApp.VerifyToken,
			AllowUnsigned: cfg.IsDevelopment(),
		},
		Logger:   logger.Named("http"),
		Metrics:  m,
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logger.Info("api server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	logger.Info("api server stopped")
}

// newSender picks the provider used by test sends
func newSender(cfg *config.Config, logger *zap.Logger) service.Sender {
	if cfg.Worker.SenderMode == config.SenderModeSimulated {
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
