package service

import (
	"context"
	"testing"

	"turion-be/internal/entity"
	"turion-be/pkg/events"
	pktNats "turion-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSubscriber struct {
	subject string
	durable string
	handler pktNats.EventHandler
}

func (s *capturingSubscriber) Subscribe(subject string, durableName string, handler pktNats.EventHandler) error {
	s.subject = subject
	s.durable = durableName
	s.handler = handler
	return nil
}

func purchase(data map[string]interface{}) events.Event {
	return events.New(events.TypeCreditsPurchased, data)
}

func TestBillingEventCreditsPurchase(t *testing.T) {
	env := newTestEnv(t)
	credits := env.credits()
	sub := &capturingSubscriber{}
	require.NoError(t, NewBillingEventService(sub, credits, env.logger).Start())
	assert.Equal(t, "events.billing.>", sub.subject)
	assert.Equal(t, "billing-credits-worker", sub.durable)

	ctx := context.Background()
	userId := uuid.New()

	err := sub.handler(ctx, purchase(map[string]interface{}{
		"user_id":   userId.String(),
		"amount":    "500",
		"reference": "cs_test_1",
	}))
	require.NoError(t, err)

	balance, err := credits.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, balance.Current.Equal(dec("10500")), balance.Current.String())
	assert.True(t, balance.LifetimeEarned.Equal(dec("10500")))

	history, err := credits.History(ctx, userId, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	var bought *entity.CreditTransaction
	for _, tx := range history {
		if tx.Type == entity.CreditTransactionPurchase {
			bought = tx
		}
	}
	require.NotNil(t, bought)
	assert.True(t, bought.Amount.Equal(dec("500")))
	assert.Equal(t, "Credit purchase", bought.Description)
	assert.Equal(t, "cs_test_1", bought.Reference)
	assert.Equal(t, "cs_test_1", bought.Metadata["reference"])
	assert.Equal(t, "billing", bought.Metadata["source"])
}

func TestBillingEventRedeliveryCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	credits := env.credits()
	sub := &capturingSubscriber{}
	require.NoError(t, NewBillingEventService(sub, credits, env.logger).Start())

	ctx := context.Background()
	userId := uuid.New()
	evt := purchase(map[string]interface{}{
		"user_id":   userId.String(),
		"amount":    "500",
		"reference": "cs_test_dup",
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, sub.handler(ctx, evt))
	}

	balance, err := credits.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, balance.Current.Equal(dec("10500")), balance.Current.String())

	history, err := credits.History(ctx, userId, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	// a different reference is a different purchase
	require.NoError(t, sub.handler(ctx, purchase(map[string]interface{}{
		"user_id":   userId.String(),
		"amount":    "500",
		"reference": "cs_test_other",
	})))
	balance, err = credits.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, balance.Current.Equal(dec("11000")), balance.Current.String())
}

func TestBillingEventDropsInvalidPayloads(t *testing.T) {
	env := newTestEnv(t)
	credits := env.credits()
	sub := &capturingSubscriber{}
	require.NoError(t, NewBillingEventService(sub, credits, env.logger).Start())

	ctx := context.Background()
	userId := uuid.New()

	invalid := []map[string]interface{}{
		{"user_id": "nope", "amount": "10"},
		{"user_id": userId.String()},
		{"user_id": userId.String(), "amount": "-5"},
		{"user_id": userId.String(), "amount": float64(0)},
	}
	for _, data := range invalid {
		assert.NoError(t, sub.handler(ctx, purchase(data)))
	}

	other := events.Envelope{Type: "billing.refund_issued", Data: map[string]interface{}{"user_id": userId.String(), "amount": "5"}}
	assert.NoError(t, sub.handler(ctx, other))

	history, err := credits.History(ctx, userId, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestNotificationServiceForwardsToOwner(t *testing.T) {
	env := newTestEnv(t)
	sub := &capturingSubscriber{}
	delivery := &recordingDelivery{}
	require.NoError(t, NewNotificationService(sub, delivery, env.logger).Start())
	assert.Equal(t, "events.credits.>", sub.subject)

	userId := uuid.New()
	ctx := context.Background()
	require.NoError(t, sub.handler(ctx, events.Envelope{
		Type: events.TypeCreditsSpent,
		Data: map[string]interface{}{"user_id": userId.String(), "amount": "4.60"},
	}))
	require.NoError(t, sub.handler(ctx, events.Envelope{Type: events.TypeCreditsSpent, Data: map[string]interface{}{}}))

	sent := delivery.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, userId, sent[0].UserID)
	assert.Equal(t, events.TypeCreditsSpent, sent[0].EventType)
}
