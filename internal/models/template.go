package models

import "time"

// Component types as used by the Cloud API
const (
	ComponentHeader = "HEADER"
	ComponentBody   = "BODY"
	ComponentFooter = "FOOTER"
)

// DefaultLanguage is used when a template carries no language code
const DefaultLanguage = "en_US"

// TemplateComponent is one block of a message template
type TemplateComponent struct {
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
	Text   string `json:"text"`
}

// Template is a provider-approved message structure. Read-only once a campaign references it.
type Template struct {
	ID         int                 `json:"id" db:"id"`
	Name       string              `json:"name" db:"name"`
	Category   string              `json:"category" db:"category"`
	Language   string              `json:"language" db:"language"`
	Components []TemplateComponent `json:"components" db:"components"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
}

// LanguageCode returns the template language or the default
func (t *Template) LanguageCode() string {
	if t.Language == "" {
		return DefaultLanguage
	}
	return t.Language
}
