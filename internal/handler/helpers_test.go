package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/service"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

// newJSONRequest creates an HTTP request with a JSON body
func newJSONRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, url, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// parseJSONResponse decodes the recorded response body
func parseJSONResponse(t *testing.T, resp *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

// errorCode returns the error.code of a JSON error envelope
func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	parseJSONResponse(t, resp, &body)
	return body.Error.Code
}

func serve(router *mux.Router, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

// fakeCampaignService implements CampaignService with overridable functions
type fakeCampaignService struct {
	CreateCampaignFunc       func(ctx context.Context, req *service.CreateCampaignRequest) (*models.Campaign, error)
	GetCampaignWithStatsFunc func(ctx context.Context, id int) (*models.CampaignWithStats, error)
	ListCampaignsFunc        func(ctx context.Context, filters repository.CampaignFilters) ([]*models.Campaign, *service.PaginationInfo, error)
	ListContactsFunc         func(ctx context.Context, campaignID, page, pageSize int) ([]*models.CampaignContact, error)
	PauseCampaignFunc        func(ctx context.Context, id int) (*models.Campaign, error)
	ResumeCampaignFunc       func(ctx context.Context, id int) (*models.Campaign, error)
	PreviewMessageFunc       func(ctx context.Context, req *service.PreviewMessageRequest) (*service.PreviewMessageResult, error)
	TestSendFunc             func(ctx context.Context, req *service.TestSendRequest) (*service.TestSendResult, error)
}

func (f *fakeCampaignService) CreateCampaign(ctx context.Context, req *service.CreateCampaignRequest) (*models.Campaign, error) {
	return f.CreateCampaignFunc(ctx, req)
}

func (f *fakeCampaignService) GetCampaignWithStats(ctx context.Context, id int) (*models.CampaignWithStats, error) {
	return f.GetCampaignWithStatsFunc(ctx, id)
}

func (f *fakeCampaignService) ListCampaigns(ctx context.Context, filters repository.CampaignFilters) ([]*models.Campaign, *service.PaginationInfo, error) {
	return f.ListCampaignsFunc(ctx, filters)
}

func (f *fakeCampaignService) ListContacts(ctx context.Context, campaignID, page, pageSize int) ([]*models.CampaignContact, error) {
	return f.ListContactsFunc(ctx, campaignID, page, pageSize)
}

func (f *fakeCampaignService) PauseCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	return f.PauseCampaignFunc(ctx, id)
}

func (f *fakeCampaignService) ResumeCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	return f.ResumeCampaignFunc(ctx, id)
}

func (f *fakeCampaignService) PreviewMessage(ctx context.Context, req *service.PreviewMessageRequest) (*service.PreviewMessageResult, error) {
	return f.PreviewMessageFunc(ctx, req)
}

func (f *fakeCampaignService) TestSend(ctx context.Context, req *service.TestSendRequest) (*service.TestSendResult, error) {
	return f.TestSendFunc(ctx, req)
}

// fakeTemplateService implements TemplateService
type fakeTemplateService struct {
	CreateTemplateFunc func(ctx context.Context, req *service.CreateTemplateRequest) (*models.Template, error)
	GetTemplateFunc    func(ctx context.Context, id int) (*models.Template, error)
	ListTemplatesFunc  func(ctx context.Context, page, pageSize int) ([]*models.Template, error)
}

func (f *fakeTemplateService) CreateTemplate(ctx context.Context, req *service.CreateTemplateRequest) (*models.Template, error) {
	return f.CreateTemplateFunc(ctx, req)
}

func (f *fakeTemplateService) GetTemplate(ctx context.Context, id int) (*models.Template, error) {
	return f.GetTemplateFunc(ctx, id)
}

func (f *fakeTemplateService) ListTemplates(ctx context.Context, page, pageSize int) ([]*models.Template, error) {
	return f.ListTemplatesFunc(ctx, page, pageSize)
}

// fakePublisher records published bodies
type fakePublisher struct {
	bodies [][]byte
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	return nil
}

type fakeHealth struct {
	status string
}

func (h fakeHealth) CheckHealth(ctx context.Context) *service.HealthStatus {
	return &service.HealthStatus{
		Status:    h.status,
		Services:  map[string]string{"database": service.StatusConnected},
		Timestamp: time.Now(),
	}
}

func newTestCampaign(status models.CampaignStatus) *models.Campaign {
	return &models.Campaign{
		ID:         1,
		Name:       "Spring promo",
		TemplateID: 3,
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

type routerOption func(*RouterDeps)

func newTestRouter(campaigns *fakeCampaignService, templates *fakeTemplateService, opts ...routerOption) *mux.Router {
	deps := RouterDeps{
		Campaigns: campaigns,
		Templates: templates,
		Health:    fakeHealth{status: service.StatusHealthy},
		Publisher: &fakePublisher{},
		Webhook:   WebhookConfig{AppSecret: "app-secret", VerifyToken: "verify-me"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewRouter(deps)
}
