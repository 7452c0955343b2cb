package handler

import (
	"net/http"

	"wacampaign/internal/models"
	"wacampaign/internal/service"
)

// TemplateHandler handles HTTP requests for the template catalog
type TemplateHandler struct {
	templateService TemplateService
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templateService TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

// Create handles POST /templates
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	template, err := h.templateService.CreateTemplate(r.Context(), &req)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteCreated(w, template)
}

// List handles GET /templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)

	templates, err := h.templateService.ListTemplates(r.Context(), page, perPage)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, ListTemplatesResponse{Templates: templates, Page: page})
}

// GetByID handles GET /templates/{id}
func (h *TemplateHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "template")
	if !ok {
		return
	}

	template, err := h.templateService.GetTemplate(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, template)
}

// ListTemplatesResponse represents one page of templates
type ListTemplatesResponse struct {
	Templates []*models.Template `json:"templates"`
	Page      int                `json:"page"`
}
