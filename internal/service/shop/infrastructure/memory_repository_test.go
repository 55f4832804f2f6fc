package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/service/shop/domain"
)

func TestMemoryLedgerRepository_UpsertCodes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()

	require.NoError(t, repo.SaveDiscountCode(ctx, &domain.DiscountCode{Code: "AAAA0001", Percentage: 10}))
	require.NoError(t, repo.SaveDiscountCode(ctx, &domain.DiscountCode{Code: "BBBB0002", Percentage: 10}))
	require.NoError(t, repo.SaveDiscountCode(ctx, &domain.DiscountCode{Code: "AAAA0001", Percentage: 10, IsUsed: true}))

	codes, err := repo.LoadDiscountCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, "AAAA0001", codes[0].Code)
	assert.True(t, codes[0].IsUsed)
}

func TestMemoryLedgerRepository_Interval(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()

	_, found, err := repo.LoadDiscountInterval(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SaveDiscountInterval(ctx, 0))
	n, found, err := repo.LoadDiscountInterval(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, n)
}

func TestMemoryLedgerRepository_OrdersAreCopied(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryLedgerRepository()
	order := &domain.Order{ID: "o1", Items: []domain.CartItem{{ID: "i1", Quantity: 1}}, FinalTotal: decimal.NewFromInt(5)}

	require.NoError(t, repo.SaveCheckout(ctx, order, &domain.DiscountCode{Code: "MILE0001", Percentage: 10, UserID: "2"}))
	order.Items[0].Quantity = 9

	orders, err := repo.LoadOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 1, orders[0].Items[0].Quantity)
	codes, err := repo.LoadDiscountCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "MILE0001", codes[0].Code)
}

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(0)

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sess := domain.NewSession("s1")
	sess.UserID = "2"
	require.NoError(t, repo.Save(ctx, sess))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "2", got.UserID)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemorySessionRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemorySessionRepository(time.Minute)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Save(ctx, domain.NewSession("s1")))
	now = now.Add(30 * time.Second)
	_, err := repo.Get(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
