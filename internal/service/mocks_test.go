package service

import (
	"context"
	"sync"
	"time"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/whatsapp"
)

// MockTemplateRepository mocks TemplateRepository
type MockTemplateRepository struct {
	CreateFunc  func(ctx context.Context, template *models.Template) error
	GetByIDFunc func(ctx context.Context, id int) (*models.Template, error)
	ListFunc    func(ctx context.Context, limit, offset int) ([]*models.Template, error)

	Calls map[string]int // Track method calls
}

func NewMockTemplateRepository() *MockTemplateRepository {
	return &MockTemplateRepository{Calls: make(map[string]int)}
}

func (m *MockTemplateRepository) Create(ctx context.Context, template *models.Template) error {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, template)
	}
	template.ID = 1
	template.CreatedAt = time.Now()
	return nil
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, id int) (*models.Template, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	tpl := newTestTemplate()
	tpl.ID = id
	return tpl, nil
}

func (m *MockTemplateRepository) List(ctx context.Context, limit, offset int) ([]*models.Template, error) {
	m.Calls["List"]++
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Template{newTestTemplate()}, nil
}

// MockCampaignRepository mocks CampaignRepository
type MockCampaignRepository struct {
	CreateFunc             func(ctx context.Context, campaign *models.Campaign) error
	CreateWithContactsFunc func(ctx context.Context, campaign *models.Campaign, contacts []*models.CampaignContact) error
	GetByIDFunc            func(ctx context.Context, id int) (*models.Campaign, error)
	GetWithStatsFunc       func(ctx context.Context, id int) (*models.CampaignWithStats, error)
	ListFunc               func(ctx context.Context, filters repository.CampaignFilters) ([]*models.Campaign, int, error)
	TransitionStatusFunc   func(ctx context.Context, id int, from, to models.CampaignStatus) error
	CompleteDrainedFunc    func(ctx context.Context, ids []int) ([]int, error)

	Calls map[string]int
}

func NewMockCampaignRepository() *MockCampaignRepository {
	return &MockCampaignRepository{Calls: make(map[string]int)}
}

func (m *MockCampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, campaign)
	}
	campaign.ID = 1
	return nil
}

func (m *MockCampaignRepository) CreateWithContacts(ctx context.Context, campaign *models.Campaign, contacts []*models.CampaignContact) error {
	m.Calls["CreateWithContacts"]++
	if m.CreateWithContactsFunc != nil {
		return m.CreateWithContactsFunc(ctx, campaign, contacts)
	}
	campaign.ID = 1
	for i, c := range contacts {
		c.ID = i + 1
		c.CampaignID = campaign.ID
	}
	return nil
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id int) (*models.Campaign, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.Campaign{ID: id, Name: "Test Campaign", TemplateID: 1, Status: models.CampaignStatusSending}, nil
}

func (m *MockCampaignRepository) GetWithStats(ctx context.Context, id int) (*models.CampaignWithStats, error) {
	m.Calls["GetWithStats"]++
	if m.GetWithStatsFunc != nil {
		return m.GetWithStatsFunc(ctx, id)
	}
	return &models.CampaignWithStats{Campaign: models.Campaign{ID: id}}, nil
}

func (m *MockCampaignRepository) List(ctx context.Context, filters repository.CampaignFilters) ([]*models.Campaign, int, error) {
	m.Calls["List"]++
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filters)
	}
	return []*models.Campaign{}, 0, nil
}

func (m *MockCampaignRepository) TransitionStatus(ctx context.Context, id int, from, to models.CampaignStatus) error {
	m.Calls["TransitionStatus"]++
	if m.TransitionStatusFunc != nil {
		return m.TransitionStatusFunc(ctx, id, from, to)
	}
	return nil
}

func (m *MockCampaignRepository) CompleteDrained(ctx context.Context, ids []int) ([]int, error) {
	m.Calls["CompleteDrained"]++
	if m.CompleteDrainedFunc != nil {
		return m.CompleteDrainedFunc(ctx, ids)
	}
	return nil, nil
}

// MockContactRepository mocks ContactRepository
type MockContactRepository struct {
	GetByIDFunc           func(ctx context.Context, id int) (*models.CampaignContact, error)
	ListByCampaignFunc    func(ctx context.Context, campaignID, limit, offset int) ([]*models.CampaignContact, error)
	FetchPendingBatchFunc func(ctx context.Context, limit int) ([]*models.DeliveryTarget, error)
	MarkSentFunc          func(ctx context.Context, id int, sentAt time.Time, messageID string) error
	MarkFailedFunc        func(ctx context.Context, id int, lastError string) error
	ApplyReceiptFunc      func(ctx context.Context, messageID string, status models.ReceiptStatus, at time.Time, lastError *string) (bool, error)

	Calls map[string]int
}

func NewMockContactRepository() *MockContactRepository {
	return &MockContactRepository{Calls: make(map[string]int)}
}

func (m *MockContactRepository) GetByID(ctx context.Context, id int) (*models.CampaignContact, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.CampaignContact{ID: id, CampaignID: 1, Name: "Ann", Phone: "+254700000001", Variables: "{}"}, nil
}

func (m *MockContactRepository) ListByCampaign(ctx context.Context, campaignID, limit, offset int) ([]*models.CampaignContact, error) {
	m.Calls["ListByCampaign"]++
	if m.ListByCampaignFunc != nil {
		return m.ListByCampaignFunc(ctx, campaignID, limit, offset)
	}
	return []*models.CampaignContact{}, nil
}

func (m *MockContactRepository) FetchPendingBatch(ctx context.Context, limit int) ([]*models.DeliveryTarget, error) {
	m.Calls["FetchPendingBatch"]++
	if m.FetchPendingBatchFunc != nil {
		return m.FetchPendingBatchFunc(ctx, limit)
	}
	return []*models.DeliveryTarget{}, nil
}

func (m *MockContactRepository) MarkSent(ctx context.Context, id int, sentAt time.Time, messageID string) error {
	m.Calls["MarkSent"]++
	if m.MarkSentFunc != nil {
		return m.MarkSentFunc(ctx, id, sentAt, messageID)
	}
	return nil
}

func (m *MockContactRepository) MarkFailed(ctx context.Context, id int, lastError string) error {
	m.Calls["MarkFailed"]++
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, lastError)
	}
	return nil
}

func (m *MockContactRepository) ApplyReceipt(ctx context.Context, messageID string, status models.ReceiptStatus, at time.Time, lastError *string) (bool, error) {
	m.Calls["ApplyReceipt"]++
	if m.ApplyReceiptFunc != nil {
		return m.ApplyReceiptFunc(ctx, messageID, status, at, lastError)
	}
	return true, nil
}

// MockInboundMessageRepository mocks InboundMessageRepository
type MockInboundMessageRepository struct {
	SaveFunc func(ctx context.Context, message *models.InboundMessage) (bool, error)

	Calls map[string]int
}

func NewMockInboundMessageRepository() *MockInboundMessageRepository {
	return &MockInboundMessageRepository{Calls: make(map[string]int)}
}

func (m *MockInboundMessageRepository) Save(ctx context.Context, message *models.InboundMessage) (bool, error) {
	m.Calls["Save"]++
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, message)
	}
	return true, nil
}

// sentMessage records one call made to MockSender
type sentMessage struct {
	To       string
	Template *whatsapp.TemplatePayload
	Text     string
}

// MockSender mocks Sender and records every payload it is given
type MockSender struct {
	SendTemplateFunc func(ctx context.Context, to string, template whatsapp.TemplatePayload) (*whatsapp.SendResult, error)
	SendTextFunc     func(ctx context.Context, to string, body string) (*whatsapp.SendResult, error)

	mu   sync.Mutex
	Sent []sentMessage
}

func (m *MockSender) SendTemplate(ctx context.Context, to string, template whatsapp.TemplatePayload) (*whatsapp.SendResult, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, sentMessage{To: to, Template: &template})
	m.mu.Unlock()

	if m.SendTemplateFunc != nil {
		return m.SendTemplateFunc(ctx, to, template)
	}
	return sendResult("wamid.TEST"), nil
}

func (m *MockSender) SendText(ctx context.Context, to string, body string) (*whatsapp.SendResult, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, sentMessage{To: to, Text: body})
	m.mu.Unlock()

	if m.SendTextFunc != nil {
		return m.SendTextFunc(ctx, to, body)
	}
	return sendResult("wamid.TEXT"), nil
}

func sendResult(id string) *whatsapp.SendResult {
	return &whatsapp.SendResult{
		MessagingProduct: "whatsapp",
		Messages:         []whatsapp.ResultMessage{{ID: id}},
	}
}

func newTestTemplate() *models.Template {
	return &models.Template{
		ID:       1,
		Name:     "spring_promo",
		Category: "MARKETING",
		Language: "en_US",
		Components: []models.TemplateComponent{
			{Type: models.ComponentHeader, Format: "TEXT", Text: "Spring sale"},
			{Type: models.ComponentBody, Text: "Hi {{contact_name}}, your code is {{code}}"},
			{Type: models.ComponentFooter, Text: "Reply STOP to opt out"},
		},
	}
}
