package models

import (
	"fmt"
	"time"
)

// CampaignStatus represents valid campaign statuses
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// ParseCampaignStatus validates a status string coming from the outside
func ParseCampaignStatus(s string) (CampaignStatus, bool) {
	switch status := CampaignStatus(s); status {
	case CampaignStatusDraft, CampaignStatusSending, CampaignStatusPaused,
		CampaignStatusSent, CampaignStatusCompleted, CampaignStatusFailed:
		return status, true
	}
	return "", false
}

// Campaign represents a bulk send job bound to one template
type Campaign struct {
	ID         int            `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	TemplateID int            `json:"template_id" db:"template_id"`
	Status     CampaignStatus `json:"status" db:"status"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// CampaignStats represents per-status contact counts
type CampaignStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
}

// CampaignWithStats represents a campaign with its statistics
type CampaignWithStats struct {
	Campaign
	Stats CampaignStats `json:"stats"`
}

// Validate checks if the campaign fields are valid
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("campaign name is required")
	}
	if c.TemplateID <= 0 {
		return fmt.Errorf("template_id is required")
	}
	return nil
}

// CanPause checks if the scheduler can be told to hold this campaign
func (c *Campaign) CanPause() bool {
	return c.Status == CampaignStatusSending
}

// CanResume checks if a paused campaign can go back to sending
func (c *Campaign) CanResume() bool {
	return c.Status == CampaignStatusPaused
}
