package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"
	"wacampaign/internal/whatsapp"
)

// ContactNamePlaceholder is substituted with the contact's name before any variable
const ContactNamePlaceholder = "contact_name"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Variable is one named substitution value
type Variable struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Variables keeps the document order of a contact's variables object
type Variables []Variable

// Lookup returns the value stored under key
func (v Variables) Lookup(key string) (string, bool) {
	for _, variable := range v {
		if variable.Key == key {
			return variable.Value, true
		}
	}
	return "", false
}

// Map returns the variables as a map
func (v Variables) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, variable := range v {
		m[variable.Key] = variable.Value
	}
	return m
}

// ParseVariables decodes a JSON object into variables in document order.
// Empty, null, malformed or non-object input yields an empty set.
// A repeated key keeps its first position and its last value.
func ParseVariables(raw string) Variables {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Variables{}
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Variables{}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Variables{}
	}

	vars := Variables{}
	index := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Variables{}
		}
		key, ok := keyTok.(string)
		if !ok {
			return Variables{}
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Variables{}
		}

		text := stringifyValue(value)
		if i, seen := index[key]; seen {
			vars[i].Value = text
			continue
		}
		index[key] = len(vars)
		vars = append(vars, Variable{Key: key, Value: text})
	}

	if _, err := dec.Token(); err != nil {
		return Variables{}
	}
	if dec.More() {
		return Variables{}
	}

	return vars
}

func stringifyValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// RenderedComponent is a template component with its placeholders substituted
type RenderedComponent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TemplateService renders templates and manages the template catalog
type TemplateService struct {
	repo repository.TemplateRepository
}

// NewTemplateService creates a new template service
func NewTemplateService(repo repository.TemplateRepository) *TemplateService {
	return &TemplateService{repo: repo}
}

// BuildTemplatePayload builds the bulk send payload: every variable becomes a body
// text parameter, in variable order. Rendering never fails.
func (s *TemplateService) BuildTemplatePayload(template *models.Template, vars Variables) whatsapp.TemplatePayload {
	payload := whatsapp.TemplatePayload{
		Name:     template.Name,
		Language: whatsapp.Language{Code: template.LanguageCode()},
	}

	if len(vars) == 0 {
		return payload
	}

	params := make([]whatsapp.Parameter, 0, len(vars))
	for _, v := range vars {
		params = append(params, whatsapp.Parameter{Type: whatsapp.ParameterTypeText, Text: v.Value})
	}
	payload.Components = []whatsapp.Component{
		{Type: whatsapp.ComponentTypeBody, Parameters: params},
	}

	return payload
}

// RenderComponents substitutes placeholders textually: {{contact_name}} first, then
// each variable in order. Unknown placeholders are left as-is.
func (s *TemplateService) RenderComponents(components []models.TemplateComponent, contactName string, vars Variables) []RenderedComponent {
	rendered := make([]RenderedComponent, 0, len(components))
	for _, component := range components {
		text := replacePlaceholder(component.Text, ContactNamePlaceholder, contactName)
		for _, v := range vars {
			text = replacePlaceholder(text, v.Key, v.Value)
		}
		rendered = append(rendered, RenderedComponent{Type: component.Type, Text: text})
	}
	return rendered
}

// RenderText joins the rendered components into one message body
func (s *TemplateService) RenderText(components []models.TemplateComponent, contactName string, vars Variables) string {
	parts := []string{}
	for _, component := range s.RenderComponents(components, contactName, vars) {
		if strings.TrimSpace(component.Text) != "" {
			parts = append(parts, component.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func replacePlaceholder(text, key, value string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		if len(sub) == 2 && sub[1] == key {
			return value
		}
		return match
	})
}

// ExtractPlaceholders returns the distinct placeholder names in text, in order of appearance
func ExtractPlaceholders(text string) []string {
	names := []string{}
	seen := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// ValidateComponents checks component types, brace balance and that a body exists
func ValidateComponents(components []models.TemplateComponent) error {
	if len(components) == 0 {
		return fmt.Errorf("template must have at least one component")
	}

	hasBody := false
	for i, component := range components {
		switch component.Type {
		case models.ComponentHeader, models.ComponentFooter:
		case models.ComponentBody:
			if strings.TrimSpace(component.Text) == "" {
				return fmt.Errorf("component %d: body text cannot be empty", i)
			}
			hasBody = true
		default:
			return fmt.Errorf("component %d: unsupported type %q", i, component.Type)
		}

		open := strings.Count(component.Text, "{{")
		closing := strings.Count(component.Text, "}}")
		if open != closing {
			return fmt.Errorf("component %d has unbalanced braces: %d open, %d close", i, open, closing)
		}
	}

	if !hasBody {
		return fmt.Errorf("template must have a BODY component")
	}

	return nil
}

// CreateTemplateRequest represents a request to register a template
type CreateTemplateRequest struct {
	Name       string                     `json:"name"`
	Category   string                     `json:"category"`
	Language   string                     `json:"language"`
	Components []models.TemplateComponent `json:"components"`
}

// Validate validates the create template request
func (r *CreateTemplateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return ValidateComponents(r.Components)
}

// CreateTemplate registers a template
func (s *TemplateService) CreateTemplate(ctx context.Context, req *CreateTemplateRequest) (*models.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	template := &models.Template{
		Name:       strings.TrimSpace(req.Name),
		Category:   req.Category,
		Language:   req.Language,
		Components: req.Components,
	}
	if template.Language == "" {
		template.Language = models.DefaultLanguage
	}

	if err := s.repo.Create(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	return template, nil
}

// GetTemplate retrieves a template by ID
func (s *TemplateService) GetTemplate(ctx context.Context, id int) (*models.Template, error) {
	template, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "template", id)
	}
	return template, nil
}

// ListTemplates lists templates, newest first
func (s *TemplateService) ListTemplates(ctx context.Context, page, pageSize int) ([]*models.Template, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page < 1 {
		page = 1
	}

	templates, err := s.repo.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}
