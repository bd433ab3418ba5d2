package service

import (
	"context"

	"turion-be/internal/pkg/logger"
	"turion-be/pkg/events"
	pktNats "turion-be/pkg/nats" // Renamed to avoid collision

	"github.com/google/uuid"
)

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, eventType string, data interface{})
}

// EventSubscriber is the durable bus consumer. *pktNats.Subscriber
// implements it.
type EventSubscriber interface {
	Subscribe(subject string, durableName string, handler pktNats.EventHandler) error
}

// NotificationService relays ledger events from the bus to the owner's open
// websocket connections, so every instance can update its clients.
type NotificationService struct {
	subscriber EventSubscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(sub EventSubscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() error {
	if err := s.subscriber.Subscribe("events.credits.>", "notif-credits-worker", s.handleEvent); err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("NotificationService", "Notification service started, listening to events.credits.>", nil)
	return nil
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	userID, err := events.UserID(event)
	if err != nil {
		s.logger.Warn("NotificationService", "Event without owner dropped", map[string]interface{}{"error": err.Error()})
		return nil
	}

	if s.delivery != nil {
		s.delivery.Send(userID, event.EventType(), event.Payload())
	}
	return nil
}
