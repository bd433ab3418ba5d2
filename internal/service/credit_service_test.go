package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"turion-be/internal/dto"
	"turion-be/internal/entity"
	"turion-be/internal/model"
	"turion-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBalance(t *testing.T, env *testEnv, userId uuid.UUID, currentCents int64) {
	t.Helper()
	// keep current == earned - spent
	earned := int64(1_000_000)
	err := env.db.Model(&model.CreditBalance{}).Where("user_id = ?", userId).Updates(map[string]interface{}{
		"current_cents":         currentCents,
		"lifetime_earned_cents": earned,
		"lifetime_spent_cents":  earned - currentCents,
	}).Error
	require.NoError(t, err)
}

func assertLedgerConsistent(t *testing.T, b *entity.CreditBalance) {
	t.Helper()
	assert.True(t, b.Current.Equal(b.LifetimeEarned.Sub(b.LifetimeSpent)),
		"current %s != earned %s - spent %s", b.Current, b.LifetimeEarned, b.LifetimeSpent)
}

func TestGetOrCreateBalanceSeedsSignupBonus(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	b, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, b.Current.Equal(dec("10000")))
	assert.True(t, b.LifetimeEarned.Equal(dec("10000")))
	assert.True(t, b.LifetimeSpent.IsZero())

	again, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, again.Current.Equal(b.Current))

	history, err := svc.History(ctx, userId, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.CreditTransactionBonus, history[0].Type)
	assert.True(t, history[0].Amount.Equal(dec("10000")))
}

func TestGetOrCreateBalanceConcurrentFirstAccess(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	userId := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GetOrCreateBalance(context.Background(), userId)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, env.db.Model(&model.CreditTransaction{}).Where("user_id = ?", userId).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSpendBelowFloorIsRejectedWithoutMutation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	_, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	setBalance(t, env, userId, -950000)

	_, err = svc.Spend(ctx, userId, dec("600"), "too much", nil)
	var insufficient *dto.InsufficientCreditError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Balance.Equal(dec("-9500")))
	assert.True(t, insufficient.Amount.Equal(dec("600")))
	assert.True(t, insufficient.Floor.Equal(dec("-10000")))

	b, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, b.Current.Equal(dec("-9500")))

	history, err := svc.History(ctx, userId, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the bonus transaction")
	assert.Empty(t, env.publisher.Spent())

	// landing exactly on the floor is allowed
	_, err = svc.Spend(ctx, userId, dec("500"), "to the floor", nil)
	require.NoError(t, err)
	b, err = svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, b.Current.Equal(dec("-10000")))
}

func TestConcurrentSpendsNeverCrossFloor(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	_, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)

	// 20000 of headroom down to the floor; 30 spends of 1000 would need 30000
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Spend(ctx, userId, dec("1000"), "parallel", nil)
			mu.Lock()
			defer mu.Unlock()
			var insufficient *dto.InsufficientCreditError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &insufficient):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, succeeded)
	assert.Equal(t, 10, rejected)

	b, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, b.Current.Equal(dec("-10000")))
	assert.True(t, b.Current.GreaterThanOrEqual(dec("-10000")))
	assertLedgerConsistent(t, b)
}

func TestEarnThenSpendRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	before, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)

	tx, err := svc.Earn(ctx, userId, dec("250.50"), entity.CreditTransactionPurchase, "top up", map[string]interface{}{"reference": "inv_1"})
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(dec("250.50")))
	assert.Equal(t, "inv_1", tx.Metadata["reference"])

	spent, err := svc.Spend(ctx, userId, dec("250.50"), "use it", nil)
	require.NoError(t, err)
	assert.True(t, spent.Amount.Equal(dec("-250.50")))

	after, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, after.Current.Equal(before.Current))
	assert.True(t, after.LifetimeEarned.Equal(dec("10250.50")))
	assert.True(t, after.LifetimeSpent.Equal(dec("250.50")))
	assertLedgerConsistent(t, after)
}

func TestPurchaseAppliesEachReferenceOnce(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	tx, err := svc.Purchase(ctx, userId, dec("100"), "pack", "inv_42", nil)
	require.NoError(t, err)
	assert.Equal(t, "inv_42", tx.Reference)
	assert.Equal(t, entity.CreditTransactionPurchase, tx.Type)

	_, err = svc.Purchase(ctx, userId, dec("100"), "pack", "inv_42", nil)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	// references are global, not per user
	_, err = svc.Purchase(ctx, uuid.New(), dec("100"), "pack", "inv_42", nil)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	// purchases without a reference are never deduplicated
	_, err = svc.Purchase(ctx, userId, dec("1"), "manual", "", nil)
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, userId, dec("1"), "manual", "", nil)
	require.NoError(t, err)

	b, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	assert.True(t, b.Current.Equal(dec("10102")), b.Current.String())
	assertLedgerConsistent(t, b)
}

func TestEarnAndSpendValidateInput(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	_, err := svc.Earn(ctx, userId, dec("0"), entity.CreditTransactionPurchase, "", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Earn(ctx, userId, dec("-5"), entity.CreditTransactionPurchase, "", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Earn(ctx, userId, dec("5"), entity.CreditTransactionUsage, "", nil)
	assert.ErrorIs(t, err, ErrInvalidTransactionType)
	_, err = svc.Spend(ctx, userId, dec("0"), "", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestChargeUsage(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	tx, err := svc.ChargeUsage(ctx, userId, llm.Usage{InputTokens: 120, OutputTokens: 340}, "chat", map[string]interface{}{"mode": "chat"})
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, entity.CreditTransactionUsage, tx.Type)
	assert.Equal(t, "-460.00", tx.Amount.StringFixed(2))
	assert.EqualValues(t, 120, tx.Metadata["input_tokens"])
	assert.Equal(t, "chat", tx.Metadata["mode"])
	require.Len(t, env.publisher.Spent(), 1)
	assert.True(t, env.publisher.Spent()[0].Equal(dec("460")))

	tx, err = svc.ChargeUsage(ctx, userId, llm.Usage{}, "nothing", nil)
	require.NoError(t, err)
	assert.Nil(t, tx)

	history, err := svc.History(ctx, userId, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestCanAffordAndCanStartNewWork(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	_, err := svc.GetOrCreateBalance(ctx, userId)
	require.NoError(t, err)
	setBalance(t, env, userId, -450000)

	ok, err := svc.CanAfford(ctx, userId, dec("5500"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.CanAfford(ctx, userId, dec("5500.01"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CanStartNewWork(ctx, userId)
	require.NoError(t, err)
	assert.True(t, ok)

	setBalance(t, env, userId, -500001)
	ok, err = svc.CanStartNewWork(ctx, userId)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistoryLimitAndSummary(t *testing.T) {
	env := newTestEnv(t)
	svc := env.credits()
	ctx := context.Background()
	userId := uuid.New()

	for i := 0; i < 12; i++ {
		_, err := svc.Spend(ctx, userId, dec("1"), "tick", nil)
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, userId, 5)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.After(history[i-1].CreatedAt), "newest first")
	}

	history, err = svc.History(ctx, userId, 10_000)
	require.NoError(t, err)
	assert.Len(t, history, 13)

	summary, err := svc.Summary(ctx, userId)
	require.NoError(t, err)
	assert.Equal(t, "9988.00", summary.Balance.Current.StringFixed(2))
	assert.Len(t, summary.RecentTransactions, 10)
}
