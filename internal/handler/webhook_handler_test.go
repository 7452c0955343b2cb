package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wacampaign/internal/metrics"
	"wacampaign/internal/whatsapp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookBody = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"statuses":[{"id":"wamid.A","status":"delivered","timestamp":"1714557600","recipient_id":"254700000001"}]}}]}]}`

func signedRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(whatsapp.SignatureHeader, whatsapp.Sign(secret, []byte(body)))
	}
	return req
}

func TestWebhookVerify(t *testing.T) {
	router := newTestRouter(&fakeCampaignService{}, nil)

	resp := serve(router, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "1158201444", resp.Body.String())

	resp = serve(router, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = serve(router, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1", nil))
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestWebhookVerify_EmptyTokenNeverMatches(t *testing.T) {
	router := newTestRouter(&fakeCampaignService{}, nil, func(d *RouterDeps) {
		d.Webhook.VerifyToken = ""
	})

	resp := serve(router, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", nil))
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestWebhookReceive_SignedEventIsQueued(t *testing.T) {
	publisher := &fakePublisher{}
	m := metrics.New(nil)
	router := newTestRouter(&fakeCampaignService{}, nil, func(d *RouterDeps) {
		d.Publisher = publisher
		d.Metrics = m
	})

	resp := serve(router, signedRequest(webhookBody, "app-secret"))
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, publisher.bodies, 1)
	assert.Equal(t, webhookBody, string(publisher.bodies[0]))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("received", "queued")))
}

func TestWebhookReceive_BadSignature(t *testing.T) {
	publisher := &fakePublisher{}
	m := metrics.New(nil)
	router := newTestRouter(&fakeCampaignService{}, nil, func(d *RouterDeps) {
		d.Publisher = publisher
		d.Metrics = m
	})

	resp := serve(router, signedRequest(webhookBody, "other-secret"))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "INVALID_SIGNATURE", errorCode(t, resp))

	resp = serve(router, signedRequest(webhookBody, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	assert.Empty(t, publisher.bodies)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("received", "bad_signature")))
}

func TestWebhookReceive_UnsignedAllowedWithoutSecret(t *testing.T) {
	publisher := &fakePublisher{}
	router := newTestRouter(&fakeCampaignService{}, nil, func(d *RouterDeps) {
		d.Publisher = publisher
		d.Webhook = WebhookConfig{VerifyToken: "verify-me", AllowUnsigned: true}
	})

	resp := serve(router, signedRequest(webhookBody, ""))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, publisher.bodies, 1)

	strict := newTestRouter(&fakeCampaignService{}, nil, func(d *RouterDeps) {
		d.Webhook = WebhookConfig{VerifyToken: "verify-me"}
	})
	resp = serve(strict, signedRequest(webhookBody, ""))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestWebhookReceive_PublishFailure(t *testing.T) {
	router := newTestRouter(&fakeCampaignService{}, nil, func(d *RouterDeps) {
		d.Publisher = &fakePublisher{err: errors.New("channel closed")}
	})

	resp := serve(router, signedRequest(webhookBody, "app-secret"))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, resp))
}

func TestWebhookReceive_BodyTooLarge(t *testing.T) {
	router := newTestRouter(&fakeCampaignService{}, nil)

	big := bytes.Repeat([]byte("a"), maxBodyBytes+1)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", bytes.NewReader(big))
	resp := serve(router, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	router := newTestRouter(&fakeCampaignService{}, nil, func(d *RouterDeps) {
		d.Metrics = m
		d.Gatherer = reg
	})

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `wacampaign_http_requests_total{code="200",method="GET",route="/health"} 1`)
}
