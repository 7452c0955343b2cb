package handler

import (
	"net/http"

	"wacampaign/internal/metrics"
	"wacampaign/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps holds everything NewRouter wires into routes
type RouterDeps struct {
	Campaigns CampaignService
	Templates TemplateService
	Health    HealthService
	Publisher EventPublisher
	Webhook   WebhookConfig
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	// Gatherer backs /metrics; nil leaves the endpoint off
	Gatherer prometheus.Gatherer
}

// NewRouter builds the API router
func NewRouter(deps RouterDeps) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	campaigns := NewCampaignHandler(deps.Campaigns)
	previews := NewPreviewHandler(deps.Campaigns)
	templates := NewTemplateHandler(deps.Templates)
	health := NewHealthHandler(deps.Health)
	webhooks := NewWebhookHandler(deps.Publisher, deps.Webhook, logger, deps.Metrics)

	router := mux.NewRouter()
	router.Use(middleware.Recovery(logger), middleware.Logging(logger, deps.Metrics))

	router.HandleFunc("/health", health.HandleHealth).Methods(http.MethodGet)
	if deps.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	router.HandleFunc("/templates", templates.Create).Methods(http.MethodPost)
	router.HandleFunc("/templates", templates.List).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}", templates.GetByID).Methods(http.MethodGet)

	router.HandleFunc("/campaigns", campaigns.Create).Methods(http.MethodPost)
	router.HandleFunc("/campaigns", campaigns.List).Methods(http.MethodGet)
	router.HandleFunc("/campaigns/{id}", campaigns.GetByID).Methods(http.MethodGet)
	router.HandleFunc("/campaigns/{id}/contacts", campaigns.ListContacts).Methods(http.MethodGet)
	router.HandleFunc("/campaigns/{id}/pause", campaigns.Pause).Methods(http.MethodPost)
	router.HandleFunc("/campaigns/{id}/resume", campaigns.Resume).Methods(http.MethodPost)
	router.HandleFunc("/campaigns/{id}/preview", previews.Preview).Methods(http.MethodPost)
	router.HandleFunc("/campaigns/{id}/test-send", previews.TestSend).Methods(http.MethodPost)

	router.HandleFunc("/webhooks/whatsapp", webhooks.Verify).Methods(http.MethodGet)
	router.HandleFunc("/webhooks/whatsapp", webhooks.Receive).Methods(http.MethodPost)

	return router
}
