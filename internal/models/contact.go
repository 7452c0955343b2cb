package models

import "time"

// ContactStatus represents the send state of a campaign contact
type ContactStatus string

const (
	ContactStatusPending ContactStatus = "pending"
	ContactStatusSent    ContactStatus = "sent"
	ContactStatusFailed  ContactStatus = "failed"
)

// ReceiptStatus is the provider-reported delivery state, tracked apart from ContactStatus
type ReceiptStatus string

const (
	ReceiptStatusDelivered ReceiptStatus = "delivered"
	ReceiptStatusRead      ReceiptStatus = "read"
	ReceiptStatusFailed    ReceiptStatus = "failed"
)

// Rank orders receipts so they only move forward
func (r ReceiptStatus) Rank() int {
	switch r {
	case ReceiptStatusDelivered:
		return 1
	case ReceiptStatusRead:
		return 2
	case ReceiptStatusFailed:
		return 3
	}
	return 0
}

// CampaignContact is one recipient row within a campaign
type CampaignContact struct {
	ID            int            `json:"id" db:"id"`
	CampaignID    int            `json:"campaign_id" db:"campaign_id"`
	Name          string         `json:"name" db:"name"`
	Phone         string         `json:"phone" db:"phone"`
	Variables     string         `json:"variables" db:"variables"`
	Status        ContactStatus  `json:"status" db:"status"`
	SentAt        *time.Time     `json:"sent_at,omitempty" db:"sent_at"`
	MessageID     *string        `json:"message_id,omitempty" db:"message_id"`
	LastError     *string        `json:"last_error,omitempty" db:"last_error"`
	ReceiptStatus *ReceiptStatus `json:"receipt_status,omitempty" db:"receipt_status"`
	ReceiptAt     *time.Time     `json:"receipt_at,omitempty" db:"receipt_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// IsTerminal reports whether the contact has left pending
func (c *CampaignContact) IsTerminal() bool {
	return c.Status == ContactStatusSent || c.Status == ContactStatusFailed
}

// DeliveryTarget is a pending contact joined with its campaign and template.
// Campaign or Template is nil when the referenced row no longer exists.
type DeliveryTarget struct {
	Contact  CampaignContact
	Campaign *Campaign
	Template *Template
}
