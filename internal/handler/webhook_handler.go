package handler

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"wacampaign/internal/metrics"
	"wacampaign/internal/whatsapp"

	"go.uber.org/zap"
)

// WebhookConfig carries the Meta app credentials used by the webhook endpoint
type WebhookConfig struct {
	AppSecret   string
	VerifyToken string
	// AllowUnsigned accepts events without a signature header when no app secret is set
	AllowUnsigned bool
}

// WebhookHandler receives WhatsApp Cloud API callbacks and queues them for the worker
type WebhookHandler struct {
	publisher EventPublisher
	cfg       WebhookConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewWebhookHandler creates a new webhook handler. m may be nil.
func NewWebhookHandler(publisher EventPublisher, cfg WebhookConfig, logger *zap.Logger, m *metrics.Metrics) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

// Verify handles GET /webhooks/whatsapp - the subscription handshake
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || h.cfg.VerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.VerifyToken)) != 1 {
		h.logger.Warn("webhook verification rejected", zap.String("mode", mode))
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

// Receive handles POST /webhooks/whatsapp
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.count("received", "too_large")
			WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body is too large")
			return
		}
		h.count("received", "read_error")
		WriteValidationError(w, "failed to read request body")
		return
	}

	if !h.authentic(r, body) {
		h.count("received", "bad_signature")
		WriteError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed")
		return
	}

	if err := h.publisher.Publish(r.Context(), body); err != nil {
		h.logger.Error("failed to queue webhook event", zap.Error(err))
		h.count("received", "publish_error")
		WriteInternalError(w)
		return
	}

	h.count("received", "queued")
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) authentic(r *http.Request, body []byte) bool {
	header := r.Header.Get(whatsapp.SignatureHeader)
	if h.cfg.AppSecret == "" {
		return h.cfg.AllowUnsigned
	}
	return whatsapp.VerifySignature(h.cfg.AppSecret, body, header)
}

func (h *WebhookHandler) count(stage, result string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(stage, result).Inc()
	}
}
