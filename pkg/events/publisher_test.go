package events

import (
	"context"
	"errors"
	"testing"

	"turion-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	events []Event
	err    error
}

func (b *recordingBus) Publish(ctx context.Context, event Event) error {
	b.events = append(b.events, event)
	return b.err
}

func TestDomainPublisher(t *testing.T) {
	bus := &recordingBus{}
	p := NewDomainPublisher(bus, logger.NewNopLogger())

	userId, txId, projectId := uuid.New(), uuid.New(), uuid.New()
	p.PublishCreditsSpent(context.Background(), userId, txId, decimal.RequireFromString("460"), "chat")
	url := "https://proj-abc123.preview.test"
	p.PublishProjectStatusChanged(context.Background(), userId, projectId, "ready", &url, nil)

	require.Len(t, bus.events, 2)
	assert.Equal(t, TypeCreditsSpent, bus.events[0].EventType())
	assert.Equal(t, "460.00", bus.events[0].Payload()["amount"])
	assert.Equal(t, TypeProjectStatusChanged, bus.events[1].EventType())
	assert.Equal(t, url, bus.events[1].Payload()["preview_url"])
	assert.NotContains(t, bus.events[1].Payload(), "error_log")
}

func TestDomainPublisherSwallowsFailures(t *testing.T) {
	bus := &recordingBus{err: errors.New("nats down")}
	p := NewDomainPublisher(bus, logger.NewNopLogger())
	assert.NotPanics(t, func() {
		p.PublishCreditsSpent(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(1), "x")
	})

	assert.NotPanics(t, func() {
		NewDomainPublisher(nil, logger.NewNopLogger()).PublishCreditsSpent(context.Background(), uuid.New(), uuid.New(), decimal.NewFromInt(1), "x")
	})
}
