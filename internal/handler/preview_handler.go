package handler

import (
	"encoding/json"
	"net/http"

	"wacampaign/internal/service"
)

// PreviewHandler handles message preview and test sends for a campaign
type PreviewHandler struct {
	campaignService CampaignService
}

// NewPreviewHandler creates a new PreviewHandler instance
func NewPreviewHandler(campaignService CampaignService) *PreviewHandler {
	return &PreviewHandler{
		campaignService: campaignService,
	}
}

// PreviewRequest represents the request body for message preview
type PreviewRequest struct {
	ContactID int `json:"contact_id"`
}

// TestSendBody represents the request body for a test send
type TestSendBody struct {
	Phone       string          `json:"phone"`
	ContactName string          `json:"contact_name"`
	Variables   json.RawMessage `json:"variables,omitempty"`
	Mode        string          `json:"mode,omitempty"`
}

// Preview handles POST /campaigns/{id}/preview
// It renders the campaign template for one of the campaign's contacts
func (h *PreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := pathID(w, r, "campaign")
	if !ok {
		return
	}

	var req PreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ContactID <= 0 {
		WriteValidationError(w, "contact_id is required and must be positive")
		return
	}

	result, err := h.campaignService.PreviewMessage(r.Context(), &service.PreviewMessageRequest{
		CampaignID: campaignID,
		ContactID:  req.ContactID,
	})
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, result)
}

// TestSend handles POST /campaigns/{id}/test-send
// It sends the campaign message to a single number outside the scheduler
func (h *PreviewHandler) TestSend(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := pathID(w, r, "campaign")
	if !ok {
		return
	}

	var body TestSendBody
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.campaignService.TestSend(r.Context(), &service.TestSendRequest{
		CampaignID:  campaignID,
		Phone:       body.Phone,
		ContactName: body.ContactName,
		Variables:   body.Variables,
		Mode:        body.Mode,
	})
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, result)
}
