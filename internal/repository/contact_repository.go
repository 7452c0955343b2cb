package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wacampaign/internal/models"

	"go.uber.org/zap"
)

type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new campaign contact repository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `id, campaign_id, name, phone, variables, status, sent_at,
	message_id, last_error, receipt_status, receipt_at, created_at`

func scanContact(row rowScanner) (*models.CampaignContact, error) {
	contact := &models.CampaignContact{}
	err := row.Scan(
		&contact.ID,
		&contact.CampaignID,
		&contact.Name,
		&contact.Phone,
		&contact.Variables,
		&contact.Status,
		&contact.SentAt,
		&contact.MessageID,
		&contact.LastError,
		&contact.ReceiptStatus,
		&contact.ReceiptAt,
		&contact.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// GetByID retrieves a contact by ID
func (r *contactRepository) GetByID(ctx context.Context, id int) (*models.CampaignContact, error) {
	query := `SELECT ` + contactColumns + ` FROM campaign_contacts WHERE id = $1`

	contact, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contact %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// ListByCampaign retrieves the contacts of one campaign in insertion order
func (r *contactRepository) ListByCampaign(ctx context.Context, campaignID, limit, offset int) ([]*models.CampaignContact, error) {
	query := `SELECT ` + contactColumns + `
		FROM campaign_contacts
		WHERE campaign_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []*models.CampaignContact{}
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}

	return contacts, nil
}

// FetchPendingBatch selects up to limit pending contacts, oldest first, joined with
// their campaign and template. Contacts of paused or draft campaigns are not selected.
// Contacts whose campaign or template row is gone, or whose template components do not
// decode, come back with a nil reference and sort after every deliverable contact.
func (r *contactRepository) FetchPendingBatch(ctx context.Context, limit int) ([]*models.DeliveryTarget, error) {
	query := `
		SELECT
			cc.id, cc.campaign_id, cc.name, cc.phone, cc.variables, cc.status, cc.created_at,
			c.id, c.name, c.status, c.created_at, c.updated_at,
			t.id, t.name, t.category, t.language, t.components, t.created_at
		FROM campaign_contacts cc
		LEFT JOIN campaigns c ON c.id = cc.campaign_id
		LEFT JOIN templates t ON t.id = c.template_id
		WHERE cc.status = 'pending'
			AND (c.id IS NULL OR c.status = 'sending')
		ORDER BY (c.id IS NULL OR t.id IS NULL) ASC, cc.created_at ASC, cc.id ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending contacts: %w", err)
	}
	defer rows.Close()

	targets := []*models.DeliveryTarget{}
	for rows.Next() {
		var (
			target models.DeliveryTarget

			campaignID        sql.NullInt64
			campaignName      sql.NullString
			campaignStatus    sql.NullString
			campaignCreatedAt sql.NullTime
			campaignUpdatedAt sql.NullTime

			templateID        sql.NullInt64
			templateName      sql.NullString
			templateCategory  sql.NullString
			templateLanguage  sql.NullString
			templateComps     []byte
			templateCreatedAt sql.NullTime
		)

		err := rows.Scan(
			&target.Contact.ID,
			&target.Contact.CampaignID,
			&target.Contact.Name,
			&target.Contact.Phone,
			&target.Contact.Variables,
			&target.Contact.Status,
			&target.Contact.CreatedAt,
			&campaignID,
			&campaignName,
			&campaignStatus,
			&campaignCreatedAt,
			&campaignUpdatedAt,
			&templateID,
			&templateName,
			&templateCategory,
			&templateLanguage,
			&templateComps,
			&templateCreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending contact: %w", err)
		}

		if campaignID.Valid {
			target.Campaign = &models.Campaign{
				ID:        int(campaignID.Int64),
				Name:      campaignName.String,
				Status:    models.CampaignStatus(campaignStatus.String),
				CreatedAt: campaignCreatedAt.Time,
				UpdatedAt: campaignUpdatedAt.Time,
			}
		}

		if templateID.Valid {
			template := &models.Template{
				ID:        int(templateID.Int64),
				Name:      templateName.String,
				Category:  templateCategory.String,
				Language:  templateLanguage.String,
				CreatedAt: templateCreatedAt.Time,
			}
			if target.Campaign != nil {
				target.Campaign.TemplateID = template.ID
			}
			if err := decodeComponents(templateComps, &template.Components); err != nil {
				zap.L().Warn("template components unreadable, contact left pending",
					zap.Int("contact_id", target.Contact.ID),
					zap.Int("template_id", template.ID),
					zap.Error(err),
				)
			} else {
				target.Template = template
			}
		}

		targets = append(targets, &target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending contacts: %w", err)
	}

	return targets, nil
}

// MarkSent moves a pending contact to sent
func (r *contactRepository) MarkSent(ctx context.Context, id int, sentAt time.Time, messageID string) error {
	query := `
		UPDATE campaign_contacts
		SET status = 'sent', sent_at = $2, message_id = $3, last_error = NULL
		WHERE id = $1 AND status = 'pending'
	`

	msgID := sql.NullString{String: messageID, Valid: messageID != ""}
	return r.terminalUpdate(ctx, id, query, id, sentAt, msgID)
}

// MarkFailed moves a pending contact to failed; sent_at stays NULL
func (r *contactRepository) MarkFailed(ctx context.Context, id int, lastError string) error {
	query := `
		UPDATE campaign_contacts
		SET status = 'failed', last_error = $2
		WHERE id = $1 AND status = 'pending'
	`

	return r.terminalUpdate(ctx, id, query, id, lastError)
}

func (r *contactRepository) terminalUpdate(ctx context.Context, id int, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update contact status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("contact %d: %w", id, ErrNotPending)
	}

	return nil
}

// ApplyReceipt records a provider delivery receipt against the contact that owns
// messageID. Receipts only move forward; stale or duplicate receipts return false.
func (r *contactRepository) ApplyReceipt(ctx context.Context, messageID string, status models.ReceiptStatus, at time.Time, lastError *string) (bool, error) {
	query := `
		UPDATE campaign_contacts
		SET receipt_status = $2, receipt_at = $3, last_error = COALESCE($4, last_error)
		WHERE message_id = $1
			AND (CASE receipt_status
					WHEN 'delivered' THEN 1
					WHEN 'read' THEN 2
					WHEN 'failed' THEN 3
					ELSE 0
				END) < $5
	`

	result, err := r.db.ExecContext(ctx, query, messageID, status, at, lastError, status.Rank())
	if err != nil {
		return false, fmt.Errorf("failed to apply receipt: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}
