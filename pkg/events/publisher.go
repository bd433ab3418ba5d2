package events

import (
	"context"

	"turion-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bus is the transport events are written to. *nats.Publisher satisfies it.
type Bus interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher emits the domain events of the ledger and the project lifecycle.
// Publishing is best-effort: failures are logged and never returned.
type Publisher interface {
	PublishCreditsSpent(ctx context.Context, userId, transactionId uuid.UUID, amount decimal.Decimal, description string)
	PublishProjectStatusChanged(ctx context.Context, userId, projectId uuid.UUID, status string, previewUrl, errorLog *string)
}

type DomainPublisher struct {
	bus    Bus
	logger logger.ILogger
}

// NewDomainPublisher accepts a nil bus, in which case every publish is a
// no-op.
func NewDomainPublisher(bus Bus, log logger.ILogger) *DomainPublisher {
	return &DomainPublisher{bus: bus, logger: log}
}

func (p *DomainPublisher) PublishCreditsSpent(ctx context.Context, userId, transactionId uuid.UUID, amount decimal.Decimal, description string) {
	p.publish(ctx, New(TypeCreditsSpent, map[string]interface{}{
		"user_id":        userId.String(),
		"transaction_id": transactionId.String(),
		"amount":         amount.StringFixed(2),
		"description":    description,
	}))
}

func (p *DomainPublisher) PublishProjectStatusChanged(ctx context.Context, userId, projectId uuid.UUID, status string, previewUrl, errorLog *string) {
	data := map[string]interface{}{
		"user_id":     userId.String(),
		"project_id":  projectId.String(),
		"status":      status,
		"entity_type": "project",
		"entity_id":   projectId.String(),
	}
	if previewUrl != nil {
		data["preview_url"] = *previewUrl
	}
	if errorLog != nil {
		data["error_log"] = *errorLog
	}

	p.publish(ctx, New(TypeProjectStatusChanged, data))
}

func (p *DomainPublisher) publish(ctx context.Context, evt Envelope) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish "+evt.Type+" event", map[string]interface{}{"error": err.Error()})
	}
}
