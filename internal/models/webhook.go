package models

import (
	"strconv"
	"time"
)

// WebhookPayload is the envelope the Cloud API posts to the webhook
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry groups changes for one business account
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange carries one change notification
type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

// WebhookValue holds inbound messages, sender profiles and delivery statuses
type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
}

// WebhookContact is the sender profile attached to inbound messages
type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// WebhookMessage is an inbound user message
type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button,omitempty"`
}

// Body returns the human readable part of the message, if any
func (m *WebhookMessage) Body() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Button != nil:
		return m.Button.Text
	}
	return ""
}

// WebhookStatus is a delivery receipt for a message we sent
type WebhookStatus struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Timestamp   string         `json:"timestamp"`
	RecipientID string         `json:"recipient_id"`
	Errors      []WebhookError `json:"errors,omitempty"`
}

// WebhookError describes why a message failed downstream
type WebhookError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// InboundMessage is a persisted user message
type InboundMessage struct {
	ID          int       `json:"id" db:"id"`
	WaMessageID string    `json:"wa_message_id" db:"wa_message_id"`
	WaID        string    `json:"wa_id" db:"wa_id"`
	ProfileName string    `json:"profile_name" db:"profile_name"`
	Type        string    `json:"type" db:"type"`
	Body        string    `json:"body" db:"body"`
	ReceivedAt  time.Time `json:"received_at" db:"received_at"`
}

// ParseUnixTimestamp converts the provider's string seconds to a time, falling back to now
func ParseUnixTimestamp(ts string, now time.Time) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || secs <= 0 {
		return now
	}
	return time.Unix(secs, 0).UTC()
}
