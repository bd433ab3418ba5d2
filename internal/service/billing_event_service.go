package service

import (
	"context"
	"errors"
	"fmt"

	"turion-be/internal/dto"
	"turion-be/internal/pkg/logger"
	"turion-be/pkg/events"

	"github.com/shopspring/decimal"
)

// BillingEventService turns verified purchase events from the billing
// provider into ledger credits.
type BillingEventService struct {
	subscriber    EventSubscriber
	creditService ICreditService
	logger        logger.ILogger
}

func NewBillingEventService(sub EventSubscriber, creditService ICreditService, log logger.ILogger) *BillingEventService {
	return &BillingEventService{
		subscriber:    sub,
		creditService: creditService,
		logger:        log,
	}
}

func (s *BillingEventService) Start() error {
	if err := s.subscriber.Subscribe("events.billing.>", "billing-credits-worker", s.handleEvent); err != nil {
		s.logger.Error("BILLING", "Failed to start billing subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("BILLING", "Billing subscriber started, listening to events.billing.>", nil)
	return nil
}

// handleEvent returns an error only for failures worth redelivering; a
// malformed purchase is logged and dropped.
func (s *BillingEventService) handleEvent(ctx context.Context, event events.Event) error {
	if event.EventType() != events.TypeCreditsPurchased {
		return nil
	}

	purchase, err := parsePurchase(event)
	if err != nil {
		s.logger.Error("BILLING", "Invalid purchase event", map[string]interface{}{"error": err.Error()})
		return nil
	}

	metadata := map[string]interface{}{"source": "billing"}
	if purchase.Reference != "" {
		metadata["reference"] = purchase.Reference
	}
	description := purchase.Description
	if description == "" {
		description = "Credit purchase"
	}

	tx, err := s.creditService.Purchase(ctx, purchase.UserId, purchase.Amount, description, purchase.Reference, metadata)
	if errors.Is(err, ErrDuplicateReference) {
		s.logger.Warn("BILLING", "Purchase already credited, redelivery skipped", map[string]interface{}{
			"user_id":   purchase.UserId.String(),
			"reference": purchase.Reference,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("credit purchase: %w", err)
	}

	s.logger.Info("BILLING", "Purchase credited", map[string]interface{}{
		"user_id":        purchase.UserId.String(),
		"amount":         purchase.Amount.String(),
		"transaction_id": tx.Id.String(),
		"reference":      purchase.Reference,
	})
	return nil
}

func parsePurchase(event events.Event) (*dto.CreditsPurchasedEvent, error) {
	userId, err := events.UserID(event)
	if err != nil {
		return nil, err
	}
	payload := event.Payload()

	var amount decimal.Decimal
	switch v := payload["amount"].(type) {
	case string:
		amount, err = decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
	case float64:
		amount = decimal.NewFromFloat(v)
	default:
		return nil, fmt.Errorf("amount missing")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	description, _ := payload["description"].(string)
	reference, _ := payload["reference"].(string)
	return &dto.CreditsPurchasedEvent{
		UserId:      userId,
		Amount:      amount,
		Description: description,
		Reference:   reference,
	}, nil
}
