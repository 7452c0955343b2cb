package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wacampaign/internal/models"
)

type inboundMessageRepository struct {
	db *sql.DB
}

// NewInboundMessageRepository creates a new inbound message repository
func NewInboundMessageRepository(db *sql.DB) InboundMessageRepository {
	return &inboundMessageRepository{db: db}
}

// Save stores an inbound message. Redelivered webhooks are ignored and report false.
func (r *inboundMessageRepository) Save(ctx context.Context, message *models.InboundMessage) (bool, error) {
	query := `
		INSERT INTO inbound_messages (wa_message_id, wa_id, profile_name, type, body, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (wa_message_id) DO NOTHING
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		message.WaMessageID,
		message.WaID,
		message.ProfileName,
		message.Type,
		message.Body,
		message.ReceivedAt,
	).Scan(&message.ID)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save inbound message: %w", err)
	}

	return true, nil
}
