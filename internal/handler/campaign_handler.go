package handler

import (
	"context"
	"net/http"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/service"
)

// CampaignHandler handles HTTP requests for campaign operations
type CampaignHandler struct {
	campaignService CampaignService
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// Create handles POST /campaigns - creates a campaign and queues its contacts
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	campaign, err := h.campaignService.CreateCampaign(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteCreated(w, CreateCampaignResponse{
		Campaign:       campaign,
		ContactsQueued: len(req.Contacts),
	})
}

// List handles GET /campaigns - lists campaigns with filters
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := repository.CampaignFilters{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "per_page", 20),
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status, ok := models.ParseCampaignStatus(statusStr)
		if !ok {
			WriteValidationError(w, "invalid status: must be one of draft, sending, paused, sent, completed, failed")
			return
		}
		filters.Status = &status
	}

	campaigns, pagination, err := h.campaignService.ListCampaigns(r.Context(), filters)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, ListCampaignsResponse{
		Campaigns:  campaigns,
		Pagination: pagination,
	})
}

// GetByID handles GET /campaigns/{id} - gets a campaign with contact statistics
func (h *CampaignHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "campaign")
	if !ok {
		return
	}

	campaign, err := h.campaignService.GetCampaignWithStats(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, campaign)
}

// ListContacts handles GET /campaigns/{id}/contacts
func (h *CampaignHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "campaign")
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 50)

	contacts, err := h.campaignService.ListContacts(r.Context(), id, page, perPage)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, ListContactsResponse{
		CampaignID: id,
		Page:       page,
		Contacts:   contacts,
	})
}

// Pause handles POST /campaigns/{id}/pause
func (h *CampaignHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaignService.PauseCampaign)
}

// Resume handles POST /campaigns/{id}/resume
func (h *CampaignHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaignService.ResumeCampaign)
}

func (h *CampaignHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int) (*models.Campaign, error)) {
	id, ok := pathID(w, r, "campaign")
	if !ok {
		return
	}

	campaign, err := apply(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, campaign)
}

// Request/Response types

// CreateCampaignResponse represents the response for creating a campaign
type CreateCampaignResponse struct {
	*models.Campaign
	ContactsQueued int `json:"contacts_queued"`
}

// ListCampaignsResponse represents the response for listing campaigns
type ListCampaignsResponse struct {
	Campaigns  []*models.Campaign      `json:"campaigns"`
	Pagination *service.PaginationInfo `json:"pagination"`
}

// ListContactsResponse represents one page of campaign contacts
type ListContactsResponse struct {
	CampaignID int                       `json:"campaign_id"`
	Page       int                       `json:"page"`
	Contacts   []*models.CampaignContact `json:"contacts"`
}

