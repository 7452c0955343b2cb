package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wacampaign/internal/models"

	"github.com/lib/pq"
)

type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

const insertCampaignQuery = `
	INSERT INTO campaigns (name, template_id, status)
	VALUES ($1, $2, $3)
	RETURNING id, created_at, updated_at
`

const insertContactQuery = `
	INSERT INTO campaign_contacts (campaign_id, name, phone, variables, status)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
`

// Create creates a new campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	err := r.db.QueryRowContext(
		ctx,
		insertCampaignQuery,
		campaign.Name,
		campaign.TemplateID,
		campaign.Status,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// CreateWithContacts inserts the campaign and all of its contacts in one transaction
func (r *campaignRepository) CreateWithContacts(ctx context.Context, campaign *models.Campaign, contacts []*models.CampaignContact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(
		ctx,
		insertCampaignQuery,
		campaign.Name,
		campaign.TemplateID,
		campaign.Status,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	if len(contacts) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertContactQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, contact := range contacts {
			contact.CampaignID = campaign.ID
			err := stmt.QueryRowContext(
				ctx,
				contact.CampaignID,
				contact.Name,
				contact.Phone,
				contact.Variables,
				contact.Status,
			).Scan(&contact.ID, &contact.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to create contact: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id int) (*models.Campaign, error) {
	query := `
		SELECT id, name, COALESCE(template_id, 0), status, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	campaign := &models.Campaign{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&campaign.ID,
		&campaign.Name,
		&campaign.TemplateID,
		&campaign.Status,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

// GetWithStats retrieves a campaign with statistics
func (r *campaignRepository) GetWithStats(ctx context.Context, id int) (*models.CampaignWithStats, error) {
	campaign, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	statsQuery := `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'sent') as sent,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COUNT(*) FILTER (WHERE receipt_status = 'delivered') as delivered,
			COUNT(*) FILTER (WHERE receipt_status = 'read') as read
		FROM campaign_contacts
		WHERE campaign_id = $1
	`

	stats := models.CampaignStats{}
	err = r.db.QueryRowContext(ctx, statsQuery, id).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Sent,
		&stats.Failed,
		&stats.Delivered,
		&stats.Read,
	)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get campaign stats: %w", err)
	}

	return &models.CampaignWithStats{
		Campaign: *campaign,
		Stats:    stats,
	}, nil
}

// List retrieves campaigns with filters and pagination
func (r *campaignRepository) List(ctx context.Context, filters CampaignFilters) ([]*models.Campaign, int, error) {
	where := strings.Builder{}
	where.WriteString(" WHERE 1=1")

	args := []interface{}{}
	argPos := 1

	if filters.Status != nil {
		where.WriteString(fmt.Sprintf(" AND status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	limit := filters.PageSize
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := (filters.Page - 1) * limit
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, name, COALESCE(template_id, 0), status, created_at, updated_at
		FROM campaigns` + where.String() +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign := &models.Campaign{}
		err := rows.Scan(
			&campaign.ID,
			&campaign.Name,
			&campaign.TemplateID,
			&campaign.Status,
			&campaign.CreatedAt,
			&campaign.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate campaigns: %w", err)
	}

	var totalCount int
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM campaigns"+where.String(), args...).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	return campaigns, totalCount, nil
}

// TransitionStatus moves a campaign from one status to another.
// Returns ErrNotFound when no campaign with that id is in the expected status.
func (r *campaignRepository) TransitionStatus(ctx context.Context, id int, from, to models.CampaignStatus) error {
	query := `
		UPDATE campaigns
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("campaign %d in status %s: %w", id, from, ErrNotFound)
	}

	return nil
}

// CompleteDrained marks sending campaigns without pending contacts as completed
// and returns the ids that changed.
func (r *campaignRepository) CompleteDrained(ctx context.Context, ids []int) ([]int, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		UPDATE campaigns c
		SET status = 'completed', updated_at = CURRENT_TIMESTAMP
		WHERE c.id = ANY($1)
			AND c.status = 'sending'
			AND NOT EXISTS (
				SELECT 1 FROM campaign_contacts cc
				WHERE cc.campaign_id = c.id AND cc.status = 'pending'
			)
		RETURNING c.id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to complete campaigns: %w", err)
	}
	defer rows.Close()

	completed := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan campaign id: %w", err)
		}
		completed = append(completed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completed campaigns: %w", err)
	}

	return completed, nil
}
