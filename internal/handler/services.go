package handler

import (
	"context"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/service"
)

// CampaignService is the campaign behaviour the HTTP layer needs.
// *service.CampaignService implements it.
type CampaignService interface {
	CreateCampaign(ctx context.Context, req *service.CreateCampaignRequest) (*models.Campaign, error)
	GetCampaignWithStats(ctx context.Context, id int) (*models.CampaignWithStats, error)
	ListCampaigns(ctx context.Context, filters repository.CampaignFilters) ([]*models.Campaign, *service.PaginationInfo, error)
	ListContacts(ctx context.Context, campaignID, page, pageSize int) ([]*models.CampaignContact, error)
	PauseCampaign(ctx context.Context, id int) (*models.Campaign, error)
	ResumeCampaign(ctx context.Context, id int) (*models.Campaign, error)
	PreviewMessage(ctx context.Context, req *service.PreviewMessageRequest) (*service.PreviewMessageResult, error)
	TestSend(ctx context.Context, req *service.TestSendRequest) (*service.TestSendResult, error)
}

// TemplateService is the template catalog behaviour the HTTP layer needs.
// *service.TemplateService implements it.
type TemplateService interface {
	CreateTemplate(ctx context.Context, req *service.CreateTemplateRequest) (*models.Template, error)
	GetTemplate(ctx context.Context, id int) (*models.Template, error)
	ListTemplates(ctx context.Context, page, pageSize int) ([]*models.Template, error)
}

// EventPublisher hands raw webhook bodies to the worker. *queue.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// HealthService reports dependency health. *service.HealthChecker implements it.
type HealthService interface {
	CheckHealth(ctx context.Context) *service.HealthStatus
}
