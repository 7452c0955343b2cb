package repository

import (
	"context"
	"errors"
	"time"

	"wacampaign/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotPending is returned when a terminal update targets a contact that already left pending
	ErrNotPending = errors.New("contact is not pending")
)

// TemplateRepository defines template data access operations
type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	GetByID(ctx context.Context, id int) (*models.Template, error)
	List(ctx context.Context, limit, offset int) ([]*models.Template, error)
}

// CampaignRepository defines campaign data access operations
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	CreateWithContacts(ctx context.Context, campaign *models.Campaign, contacts []*models.CampaignContact) error
	GetByID(ctx context.Context, id int) (*models.Campaign, error)
	GetWithStats(ctx context.Context, id int) (*models.CampaignWithStats, error)
	List(ctx context.Context, filters CampaignFilters) ([]*models.Campaign, int, error)
	TransitionStatus(ctx context.Context, id int, from, to models.CampaignStatus) error
	CompleteDrained(ctx context.Context, ids []int) ([]int, error)
}

// CampaignFilters defines filters for listing campaigns
type CampaignFilters struct {
	Page     int
	PageSize int
	Status   *models.CampaignStatus
}

// ContactRepository defines campaign contact data access operations
type ContactRepository interface {
	GetByID(ctx context.Context, id int) (*models.CampaignContact, error)
	ListByCampaign(ctx context.Context, campaignID, limit, offset int) ([]*models.CampaignContact, error)
	FetchPendingBatch(ctx context.Context, limit int) ([]*models.DeliveryTarget, error)
	MarkSent(ctx context.Context, id int, sentAt time.Time, messageID string) error
	MarkFailed(ctx context.Context, id int, lastError string) error
	ApplyReceipt(ctx context.Context, messageID string, status models.ReceiptStatus, at time.Time, lastError *string) (bool, error)
}

// InboundMessageRepository stores user messages received through the webhook
type InboundMessageRepository interface {
	Save(ctx context.Context, message *models.InboundMessage) (bool, error)
}

// TickLocker serialises scheduler ticks across processes
type TickLocker interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}

