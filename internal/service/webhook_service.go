package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"

	"go.uber.org/zap"
)

// ErrMalformedEvent marks a webhook body that can never be processed
var ErrMalformedEvent = errors.New("malformed webhook event")

// WebhookStats counts what one webhook event changed
type WebhookStats struct {
	ReceiptsApplied int
	ReceiptsIgnored int
	MessagesStored  int
	MessagesDuped   int
}

// WebhookService applies Cloud API webhook events: delivery receipts and inbound messages
type WebhookService struct {
	contacts repository.ContactRepository
	inbound  repository.InboundMessageRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	contacts repository.ContactRepository,
	inbound repository.InboundMessageRepository,
	logger *zap.Logger,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		contacts: contacts,
		inbound:  inbound,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleEvent processes one raw webhook body. Malformed bodies return an error
// wrapping ErrMalformedEvent; storage errors are returned as-is so the event can be retried.
func (s *WebhookService) HandleEvent(ctx context.Context, body []byte) (*WebhookStats, error) {
	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	stats := &WebhookStats{}
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}

			for _, status := range change.Value.Statuses {
				applied, err := s.applyStatus(ctx, status)
				if err != nil {
					return stats, err
				}
				if applied {
					stats.ReceiptsApplied++
				} else {
					stats.ReceiptsIgnored++
				}
			}

			profiles := map[string]string{}
			for _, contact := range change.Value.Contacts {
				profiles[contact.WaID] = contact.Profile.Name
			}

			for _, message := range change.Value.Messages {
				stored, err := s.storeMessage(ctx, message, profiles[message.From])
				if err != nil {
					return stats, err
				}
				if stored {
					stats.MessagesStored++
				} else {
					stats.MessagesDuped++
				}
			}
		}
	}

	return stats, nil
}

func (s *WebhookService) applyStatus(ctx context.Context, status models.WebhookStatus) (bool, error) {
	var receipt models.ReceiptStatus
	switch status.Status {
	case "delivered":
		receipt = models.ReceiptStatusDelivered
	case "read":
		receipt = models.ReceiptStatusRead
	case "failed":
		receipt = models.ReceiptStatusFailed
	default:
		// "sent" is already recorded by the delivery worker
		return false, nil
	}

	if status.ID == "" {
		return false, nil
	}

	var lastError *string
	if receipt == models.ReceiptStatusFailed {
		text := describeErrors(status.Errors)
		lastError = &text
	}

	at := models.ParseUnixTimestamp(status.Timestamp, s.now().UTC())
	applied, err := s.contacts.ApplyReceipt(ctx, status.ID, receipt, at, lastError)
	if err != nil {
		return false, fmt.Errorf("failed to apply %s receipt for %s: %w", receipt, status.ID, err)
	}

	s.logger.Debug("receipt processed",
		zap.String("message_id", status.ID),
		zap.String("receipt", string(receipt)),
		zap.Bool("applied", applied),
	)

	return applied, nil
}

func (s *WebhookService) storeMessage(ctx context.Context, message models.WebhookMessage, profileName string) (bool, error) {
	if message.ID == "" {
		return false, nil
	}

	inbound := &models.InboundMessage{
		WaMessageID: message.ID,
		WaID:        message.From,
		ProfileName: profileName,
		Type:        message.Type,
		Body:        message.Body(),
		ReceivedAt:  models.ParseUnixTimestamp(message.Timestamp, s.now().UTC()),
	}

	stored, err := s.inbound.Save(ctx, inbound)
	if err != nil {
		return false, fmt.Errorf("failed to store inbound message %s: %w", message.ID, err)
	}

	if stored {
		s.logger.Info("inbound message stored",
			zap.String("wa_id", inbound.WaID),
			zap.String("type", inbound.Type),
		)
	}

	return stored, nil
}

func describeErrors(errs []models.WebhookError) string {
	if len(errs) == 0 {
		return "delivery failed"
	}

	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		text := e.Title
		if e.Message != "" && e.Message != e.Title {
			text = e.Title + ": " + e.Message
		}
		parts = append(parts, fmt.Sprintf("%d %s", e.Code, text))
	}
	return strings.Join(parts, "; ")
}
