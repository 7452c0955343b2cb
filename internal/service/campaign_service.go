package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/whatsapp"

	"go.uber.org/zap"
)

// CampaignService handles campaign business logic
type CampaignService struct {
	campaignRepo repository.CampaignRepository
	contactRepo  repository.ContactRepository
	templateSvc  *TemplateService
	sender       Sender
	logger       *zap.Logger
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaignRepo repository.CampaignRepository,
	contactRepo repository.ContactRepository,
	templateSvc *TemplateService,
	sender Sender,
	logger *zap.Logger,
) *CampaignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		templateSvc:  templateSvc,
		sender:       sender,
		logger:       logger,
	}
}

// CreateCampaign creates a campaign and its contacts in one transaction. A campaign
// submitted with contacts starts in sending; without contacts it stays a draft.
func (s *CampaignService) CreateCampaign(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	if _, err := s.templateSvc.GetTemplate(ctx, req.TemplateID); err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		Name:       strings.TrimSpace(req.Name),
		TemplateID: req.TemplateID,
		Status:     models.CampaignStatusDraft,
	}

	contacts := make([]*models.CampaignContact, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		contacts = append(contacts, &models.CampaignContact{
			Name:      strings.TrimSpace(c.Name),
			Phone:     strings.TrimSpace(c.Phone),
			Variables: c.variablesText(),
			Status:    models.ContactStatusPending,
		})
	}
	var err error
	if len(contacts) == 0 {
		err = s.campaignRepo.Create(ctx, campaign)
	} else {
		campaign.Status = models.CampaignStatusSending
		err = s.campaignRepo.CreateWithContacts(ctx, campaign, contacts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("campaign created",
		zap.Int("campaign_id", campaign.ID),
		zap.Int("template_id", campaign.TemplateID),
		zap.Int("contacts", len(contacts)),
		zap.String("status", string(campaign.Status)),
	)

	return campaign, nil
}

// GetCampaign retrieves a campaign by ID
func (s *CampaignService) GetCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "campaign", id)
	}
	return campaign, nil
}

// GetCampaignWithStats retrieves a campaign with statistics
func (s *CampaignService) GetCampaignWithStats(ctx context.Context, id int) (*models.CampaignWithStats, error) {
	campaign, err := s.campaignRepo.GetWithStats(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "campaign", id)
	}
	return campaign, nil
}

// ListCampaigns lists campaigns with filters
func (s *CampaignService) ListCampaigns(ctx context.Context, filters repository.CampaignFilters) ([]*models.Campaign, *PaginationInfo, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	campaigns, total, err := s.campaignRepo.List(ctx, filters)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	pagination := &PaginationInfo{
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalCount: total,
		TotalPages: (total + filters.PageSize - 1) / filters.PageSize,
	}

	return campaigns, pagination, nil
}

// ListContacts lists the contacts of a campaign in send order
func (s *CampaignService) ListContacts(ctx context.Context, campaignID, page, pageSize int) ([]*models.CampaignContact, error) {
	if _, err := s.GetCampaign(ctx, campaignID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}

	contacts, err := s.contactRepo.ListByCampaign(ctx, campaignID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// PauseCampaign stops the scheduler from selecting the campaign's pending contacts
func (s *CampaignService) PauseCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	return s.transition(ctx, id, models.CampaignStatusSending, models.CampaignStatusPaused)
}

// ResumeCampaign puts a paused campaign back into sending
func (s *CampaignService) ResumeCampaign(ctx context.Context, id int) (*models.Campaign, error) {
	return s.transition(ctx, id, models.CampaignStatusPaused, models.CampaignStatusSending)
}

func (s *CampaignService) transition(ctx context.Context, id int, from, to models.CampaignStatus) (*models.Campaign, error) {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	if campaign.Status != from {
		return nil, &BusinessLogicError{
			Message: fmt.Sprintf("campaign cannot move to %s: status is %s", to, campaign.Status),
		}
	}

	err = s.campaignRepo.TransitionStatus(ctx, id, from, to)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &BusinessLogicError{
			Message: fmt.Sprintf("campaign %d changed status concurrently", id),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update campaign status: %w", err)
	}

	s.logger.Info("campaign status changed",
		zap.Int("campaign_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	campaign.Status = to
	return campaign, nil
}

// PreviewMessage shows how the campaign template renders for one of its contacts,
// both as text and as the payload the scheduler would send
func (s *CampaignService) PreviewMessage(ctx context.Context, req *PreviewMessageRequest) (*PreviewMessageResult, error) {
	campaign, err := s.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	contact, err := s.contactRepo.GetByID(ctx, req.ContactID)
	if err != nil {
		return nil, notFoundOr(err, "contact", req.ContactID)
	}
	if contact.CampaignID != campaign.ID {
		return nil, &ValidationError{
			Message: fmt.Sprintf("contact %d does not belong to campaign %d", contact.ID, campaign.ID),
		}
	}

	template, err := s.templateSvc.GetTemplate(ctx, campaign.TemplateID)
	if err != nil {
		return nil, err
	}

	vars := ParseVariables(contact.Variables)
	rendered := s.templateSvc.RenderComponents(template.Components, contact.Name, vars)

	texts := make([]string, len(rendered))
	for i, component := range rendered {
		texts[i] = component.Text
	}
	unresolved := ExtractPlaceholders(strings.Join(texts, "\n"))

	return &PreviewMessageResult{
		CampaignID: campaign.ID,
		Contact: PreviewContact{
			ID:    contact.ID,
			Name:  contact.Name,
			Phone: contact.Phone,
		},
		Components:   rendered,
		Text:         s.templateSvc.RenderText(template.Components, contact.Name, vars),
		Payload:      s.templateSvc.BuildTemplatePayload(template, vars),
		Unresolved:   unresolved,
		TemplateName: template.Name,
	}, nil
}

// TestSend sends the campaign template to an arbitrary number without touching
// campaign contacts. Text mode sends the textually rendered body instead.
func (s *CampaignService) TestSend(ctx context.Context, req *TestSendRequest) (*TestSendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	campaign, err := s.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	template, err := s.templateSvc.GetTemplate(ctx, campaign.TemplateID)
	if err != nil {
		return nil, err
	}

	vars := ParseVariables(string(req.Variables))

	var result *whatsapp.SendResult
	if req.Mode == TestSendModeText {
		result, err = s.sender.SendText(ctx, req.Phone, s.templateSvc.RenderText(template.Components, req.ContactName, vars))
	} else {
		result, err = s.sender.SendTemplate(ctx, req.Phone, s.templateSvc.BuildTemplatePayload(template, vars))
	}
	if err != nil {
		return nil, &BusinessLogicError{Message: fmt.Sprintf("test send failed: %v", err)}
	}

	s.logger.Info("test message sent",
		zap.Int("campaign_id", campaign.ID),
		zap.String("mode", req.modeOrDefault()),
		zap.String("message_id", result.MessageID()),
	)

	return &TestSendResult{
		CampaignID: campaign.ID,
		Mode:       req.modeOrDefault(),
		MessageID:  result.MessageID(),
	}, nil
}

// Request/Response types

// ContactInput is one recipient submitted with a campaign
type ContactInput struct {
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Variables json.RawMessage `json:"variables,omitempty"`
}

func (c ContactInput) variablesText() string {
	trimmed := bytes.TrimSpace(c.Variables)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}"
	}
	return string(trimmed)
}

// CreateCampaignRequest represents a request to create a campaign
type CreateCampaignRequest struct {
	Name       string         `json:"name"`
	TemplateID int            `json:"template_id"`
	Contacts   []ContactInput `json:"contacts"`
}

// Validate validates the create campaign request
func (r *CreateCampaignRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if r.TemplateID <= 0 {
		return fmt.Errorf("template_id is required")
	}
	for i, c := range r.Contacts {
		if whatsapp.NormalizePhone(c.Phone) == "" {
			return fmt.Errorf("contacts[%d]: phone is required", i)
		}
		trimmed := bytes.TrimSpace(c.Variables)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && trimmed[0] != '{' {
			return fmt.Errorf("contacts[%d]: variables must be a JSON object", i)
		}
	}
	return nil
}

// PreviewMessageRequest represents a request to preview a message
type PreviewMessageRequest struct {
	CampaignID int `json:"campaign_id"`
	ContactID  int `json:"contact_id"`
}

// PreviewContact identifies the contact a preview was rendered for
type PreviewContact struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// PreviewMessageResult represents the result of previewing a message
type PreviewMessageResult struct {
	CampaignID   int                      `json:"campaign_id"`
	TemplateName string                   `json:"template_name"`
	Contact      PreviewContact           `json:"contact"`
	Components   []RenderedComponent      `json:"components"`
	Text         string                   `json:"text"`
	Payload      whatsapp.TemplatePayload `json:"payload"`
	Unresolved   []string                 `json:"unresolved_placeholders"`
}

// Test send modes
const (
	TestSendModeTemplate = "template"
	TestSendModeText     = "text"
)

// TestSendRequest represents a request to send one campaign message to a test number
type TestSendRequest struct {
	CampaignID  int             `json:"campaign_id"`
	Phone       string          `json:"phone"`
	ContactName string          `json:"contact_name"`
	Variables   json.RawMessage `json:"variables,omitempty"`
	Mode        string          `json:"mode,omitempty"`
}

// Validate validates the test send request
func (r *TestSendRequest) Validate() error {
	if whatsapp.NormalizePhone(r.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	switch r.Mode {
	case "", TestSendModeTemplate, TestSendModeText:
	default:
		return fmt.Errorf("mode must be 'template' or 'text'")
	}
	return nil
}

func (r *TestSendRequest) modeOrDefault() string {
	if r.Mode == "" {
		return TestSendModeTemplate
	}
	return r.Mode
}

// TestSendResult represents the result of a test send
type TestSendResult struct {
	CampaignID int    `json:"campaign_id"`
	Mode       string `json:"mode"`
	MessageID  string `json:"message_id"`
}

// PaginationInfo represents pagination metadata
type PaginationInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}
