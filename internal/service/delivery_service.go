package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wacampaign/internal/models"
	"wacampaign/internal/repository"

	"go.uber.org/zap"
)

// Outcome is the result of one delivery attempt
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// DeliveryResult describes what happened to one contact
type DeliveryResult struct {
	ContactID int
	Outcome   Outcome
	MessageID string
	// SendErr is the provider error for a failed send
	SendErr error
	// PersistErr is set when the terminal status could not be written
	PersistErr error
	Latency    time.Duration
}

// DeliveryService sends one pending contact and records the outcome
type DeliveryService struct {
	contacts  repository.ContactRepository
	templates *TemplateService
	sender    Sender
	logger    *zap.Logger
	now       func() time.Time
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(
	contacts repository.ContactRepository,
	templates *TemplateService,
	sender Sender,
	logger *zap.Logger,
) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryService{
		contacts:  contacts,
		templates: templates,
		sender:    sender,
		logger:    logger,
		now:       time.Now,
	}
}

// Deliver renders the template for target, sends it and moves the contact to
// sent or failed. There is no retry; a failed contact stays failed.
func (s *DeliveryService) Deliver(ctx context.Context, target *models.DeliveryTarget) DeliveryResult {
	contact := target.Contact
	result := DeliveryResult{ContactID: contact.ID}

	if target.Template == nil {
		result.Outcome = OutcomeSkipped
		return result
	}

	logger := s.logger.With(
		zap.Int("contact_id", contact.ID),
		zap.Int("campaign_id", contact.CampaignID),
	)

	vars := ParseVariables(contact.Variables)
	payload := s.templates.BuildTemplatePayload(target.Template, vars)

	start := s.now()
	sendResult, err := s.sender.SendTemplate(ctx, contact.Phone, payload)
	result.Latency = s.now().Sub(start)

	// The terminal write must land even if the caller is shutting down
	persistCtx := context.WithoutCancel(ctx)

	if err != nil {
		result.Outcome = OutcomeFailed
		result.SendErr = err
		logger.Warn("send failed", zap.Error(err))

		if perr := s.contacts.MarkFailed(persistCtx, contact.ID, err.Error()); perr != nil {
			result.PersistErr = perr
			s.logPersistError(logger, perr)
		}
		return result
	}

	result.Outcome = OutcomeSent
	result.MessageID = sendResult.MessageID()

	if perr := s.contacts.MarkSent(persistCtx, contact.ID, s.now(), result.MessageID); perr != nil {
		result.PersistErr = perr
		s.logPersistError(logger, perr)
		return result
	}

	logger.Info("message sent",
		zap.String("message_id", result.MessageID),
		zap.Duration("latency", result.Latency),
	)

	return result
}

func (s *DeliveryService) logPersistError(logger *zap.Logger, err error) {
	if errors.Is(err, repository.ErrNotPending) {
		logger.Warn("contact already left pending; outcome not recorded", zap.Error(err))
		return
	}
	logger.Error("failed to record delivery outcome", zap.Error(err))
}

// Err returns the send or persistence error, if any
func (r DeliveryResult) Err() error {
	switch {
	case r.PersistErr != nil:
		return fmt.Errorf("contact %d: %w", r.ContactID, r.PersistErr)
	case r.SendErr != nil:
		return fmt.Errorf("contact %d: %w", r.ContactID, r.SendErr)
	}
	return nil
}
