package whatsapp

// Parameter types understood by the Cloud API
const (
	ParameterTypeText = "text"
)

// Component types for outgoing template messages (lower case on the wire)
const (
	ComponentTypeHeader = "header"
	ComponentTypeBody   = "body"
)

// Language identifies the template translation to use
type Language struct {
	Code string `json:"code"`
}

// Parameter fills one positional placeholder of a template component
type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Component carries the parameters for one template component
type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
}

// TemplatePayload is the "template" object of a template message
type TemplatePayload struct {
	Name       string      `json:"name"`
	Language   Language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

// TextPayload is the "text" object of a free-form message
type TextPayload struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type messageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         *TemplatePayload `json:"template,omitempty"`
	Text             *TextPayload     `json:"text,omitempty"`
}

// ResultContact maps the submitted number to a WhatsApp id
type ResultContact struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

// ResultMessage is one accepted message
type ResultMessage struct {
	ID string `json:"id"`
}

// SendResult is the Cloud API response to a successful send
type SendResult struct {
	MessagingProduct string          `json:"messaging_product"`
	Contacts         []ResultContact `json:"contacts"`
	Messages         []ResultMessage `json:"messages"`
}

// MessageID returns the id of the first accepted message, or "" when none was returned
func (r *SendResult) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}
