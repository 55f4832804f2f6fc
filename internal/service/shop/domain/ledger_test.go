package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sessionA = "session-a"
	sessionB = "session-b"
)

var testUsers = []User{
	{ID: "U", Email: "u@example.com", Password: "pw", Name: "U", Role: RoleUser},
	{ID: "V", Email: "v@example.com", Password: "pw", Name: "V", Role: RoleUser},
	{ID: "A", Email: "admin@example.com", Password: "pw", Name: "Admin", Role: RoleAdmin},
}

func newTestLedger(t *testing.T, opts ...LedgerOption) *Ledger {
	t.Helper()
	catalog := NewCatalog([]Product{
		product("P1", "100.00"),
		product("P2", "25.50"),
	})
	base := []LedgerOption{
		WithIDGenerator(seqIDs("id")),
		WithCodeGenerator(fixedCodes("CODE0001", "CODE0002", "CODE0003", "CODE0004", "CODE0005")),
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }),
	}
	return NewLedger(catalog, NewUserDirectory(testUsers), append(base, opts...)...)
}

func login(t *testing.T, l *Ledger, session, email string) {
	t.Helper()
	_, err := l.Login(session, email, "pw")
	require.NoError(t, err)
}

func placeOrder(t *testing.T, l *Ledger, session string) CheckoutResult {
	t.Helper()
	require.NoError(t, l.AddItem(session, "P2", 1))
	res, err := l.Checkout(session)
	require.NoError(t, err)
	return res
}

func TestLedger_Scenario(t *testing.T) {
	l := newTestLedger(t)
	login(t, l, sessionA, "u@example.com")

	require.NoError(t, l.AddItem(sessionA, "P1", 2))
	cart := l.Cart(sessionA)
	assert.True(t, decimal.NewFromInt(200).Equal(cart.Total))

	code := l.IssueDiscount("U")
	assert.Equal(t, 10, code.Percentage)
	assert.Equal(t, "U", code.UserID)

	require.True(t, l.ApplyDiscount(sessionA, code.Code))
	cart = l.Cart(sessionA)
	assert.True(t, decimal.NewFromInt(20).Equal(cart.DiscountAmount()))
	assert.True(t, decimal.NewFromInt(180).Equal(cart.FinalTotal()))

	assert.False(t, l.ApplyDiscount(sessionA, code.Code))

	res, err := l.Checkout(sessionA)
	require.NoError(t, err)
	assert.Equal(t, CheckoutDone, res.State)
	assert.True(t, decimal.NewFromInt(180).Equal(res.Order.FinalTotal))
	assert.True(t, decimal.NewFromInt(20).Equal(res.Order.DiscountAmount))
	assert.Equal(t, code.Code, res.Order.DiscountCode)
	assert.Equal(t, "U", res.Order.UserID)

	cart = l.Cart(sessionA)
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.Total.IsZero())
	assert.Nil(t, cart.Discount)
}

func TestLedger_AddItemUnknownProductIsNoop(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddItem(sessionA, "P1", 1))

	err := l.AddItem(sessionA, "nope", 3)

	assert.ErrorIs(t, err, ErrProductNotFound)
	cart := l.Cart(sessionA)
	assert.Len(t, cart.Items, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(cart.Total))
}

func TestLedger_AddItemRejectsNonPositiveQuantity(t *testing.T) {
	l := newTestLedger(t)

	assert.ErrorIs(t, l.AddItem(sessionA, "P1", 0), ErrInvalidQuantity)
	assert.ErrorIs(t, l.AddItem(sessionA, "P1", -2), ErrInvalidQuantity)
	assert.True(t, l.Cart(sessionA).IsEmpty())
}

func TestLedger_DiscountFollowsCartChanges(t *testing.T) {
	l := newTestLedger(t)
	code := l.IssueDiscount("")
	require.NoError(t, l.AddItem(sessionA, "P1", 1))
	require.True(t, l.ApplyDiscount(sessionA, code.Code))

	require.NoError(t, l.AddItem(sessionA, "P1", 1))
	cart := l.Cart(sessionA)
	assert.True(t, decimal.NewFromInt(20).Equal(cart.DiscountAmount()))

	l.UpdateQuantity(sessionA, cart.Items[0].ID, 5)
	cart = l.Cart(sessionA)
	assert.True(t, decimal.NewFromInt(50).Equal(cart.DiscountAmount()))
	assert.True(t, decimal.NewFromInt(450).Equal(cart.FinalTotal()))
}

func TestLedger_OneShotDiscountAcrossCarts(t *testing.T) {
	l := newTestLedger(t)
	code := l.IssueDiscount("")
	require.NoError(t, l.AddItem(sessionA, "P1", 1))
	require.NoError(t, l.AddItem(sessionB, "P1", 1))

	first := l.ApplyDiscount(sessionA, code.Code)
	second := l.ApplyDiscount(sessionB, code.Code)

	assert.True(t, first)
	assert.False(t, second)
	assert.Nil(t, l.Cart(sessionB).Discount)
	dc, ok := l.FindDiscount(code.Code)
	require.True(t, ok)
	assert.True(t, dc.IsUsed)
}

func TestLedger_ApplyDiscountRespectsAttribution(t *testing.T) {
	l := newTestLedger(t)
	code := l.IssueDiscount("U")
	login(t, l, sessionB, "v@example.com")
	require.NoError(t, l.AddItem(sessionB, "P1", 1))

	assert.False(t, l.ApplyDiscount(sessionB, code.Code))
	assert.False(t, l.ApplyDiscount(sessionA, code.Code), "anonymous session")

	dc, _ := l.FindDiscount(code.Code)
	assert.False(t, dc.IsUsed, "failed attempts must not consume the code")

	login(t, l, sessionA, "u@example.com")
	assert.True(t, l.ApplyDiscount(sessionA, code.Code))
}

func TestLedger_ApplyUnknownCodeFails(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddItem(sessionA, "P1", 1))

	assert.False(t, l.ApplyDiscount(sessionA, "UNKNOWN"))
	assert.Nil(t, l.Cart(sessionA).Discount)
}

func TestLedger_DisableGate(t *testing.T) {
	l := newTestLedger(t)
	code := l.IssueDiscount("")
	require.NoError(t, l.AddItem(sessionA, "P1", 1))

	_, err := l.ToggleDiscount(code.Code)
	require.NoError(t, err)
	assert.False(t, l.ApplyDiscount(sessionA, code.Code))

	_, err = l.ToggleDiscount(code.Code)
	require.NoError(t, err)
	assert.True(t, l.ApplyDiscount(sessionA, code.Code))

	// 已使用后再切换也无法复用
	_, err = l.ToggleDiscount(code.Code)
	require.NoError(t, err)
	_, err = l.ToggleDiscount(code.Code)
	require.NoError(t, err)
	require.NoError(t, l.AddItem(sessionB, "P1", 1))
	assert.False(t, l.ApplyDiscount(sessionB, code.Code))

	_, err = l.ToggleDiscount("missing")
	assert.ErrorIs(t, err, ErrDiscountCodeNotFound)
}

func TestLedger_IdempotentRemoval(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddItem(sessionA, "P1", 2))
	before := l.Cart(sessionA)

	l.RemoveItem(sessionA, "missing")

	after := l.Cart(sessionA)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, before.Total.Equal(after.Total))
	assert.True(t, before.FinalTotal().Equal(after.FinalTotal()))
}

func TestLedger_UpdateQuantityZeroRemoves(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddItem(sessionA, "P1", 2))
	require.NoError(t, l.AddItem(sessionA, "P2", 2))
	items := l.Cart(sessionA).Items

	l.UpdateQuantity(sessionA, items[0].ID, 0)

	cart := l.Cart(sessionA)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "P2", cart.Items[0].Product.ID)
	assert.True(t, decimal.NewFromInt(51).Equal(cart.Total))
}

func TestLedger_CheckoutEmptyCartRejected(t *testing.T) {
	l := newTestLedger(t)
	login(t, l, sessionA, "u@example.com")

	res, err := l.Checkout(sessionA)

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, CheckoutRejected, res.State)
	assert.Equal(t, 0, l.OrderCount())
	assert.Empty(t, l.DiscountCodes())
}

func TestLedger_MilestoneIssuance(t *testing.T) {
	l := newTestLedger(t, WithDiscountInterval(3))
	login(t, l, sessionA, "u@example.com")

	issuedAt := []int{}
	for i := 1; i <= 7; i++ {
		res := placeOrder(t, l, sessionA)
		assert.Equal(t, i, res.UserOrderCount)
		if res.IssuedCode != nil {
			issuedAt = append(issuedAt, i)
			assert.Equal(t, "U", res.IssuedCode.UserID)
			assert.Equal(t, DefaultDiscountPercentage, res.IssuedCode.Percentage)
		}
	}

	assert.Equal(t, []int{3, 6}, issuedAt)
	assert.Len(t, l.CodesForUser("U"), 2)
}

func TestLedger_MilestoneCountsPerUser(t *testing.T) {
	l := newTestLedger(t, WithDiscountInterval(2))
	login(t, l, sessionA, "u@example.com")
	login(t, l, sessionB, "v@example.com")

	assert.Nil(t, placeOrder(t, l, sessionA).IssuedCode)
	assert.Nil(t, placeOrder(t, l, sessionB).IssuedCode)
	// 匿名订单不计入任何用户
	l.Logout(sessionB)
	assert.Nil(t, placeOrder(t, l, sessionB).IssuedCode)

	assert.NotNil(t, placeOrder(t, l, sessionA).IssuedCode)
	assert.Equal(t, 4, l.OrderCount())
	assert.Equal(t, 2, l.UserOrderCount("U"))
	assert.Equal(t, 1, l.UserOrderCount("V"))
}

func TestLedger_IntervalZeroDisablesIssuance(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetDiscountInterval(0))
	login(t, l, sessionA, "u@example.com")

	for i := 0; i < 4; i++ {
		assert.Nil(t, placeOrder(t, l, sessionA).IssuedCode)
	}
	assert.ErrorIs(t, l.SetDiscountInterval(-1), ErrInvalidInterval)
	assert.Equal(t, 0, l.DiscountInterval())
}

type failingRule struct{}

func (failingRule) ShouldIssue(int, int) (bool, error) {
	return false, errors.New("boom")
}

func TestLedger_RuleErrorDoesNotAbortCheckout(t *testing.T) {
	l := newTestLedger(t, WithIssuanceRule(failingRule{}))
	login(t, l, sessionA, "u@example.com")

	res := placeOrder(t, l, sessionA)

	assert.Equal(t, CheckoutDone, res.State)
	assert.EqualError(t, res.IssuanceErr, "boom")
	assert.Nil(t, res.IssuedCode)
	assert.Equal(t, 1, l.OrderCount())
	assert.True(t, l.Cart(sessionA).IsEmpty())
}

func TestLedger_OrderSnapshotIsIndependentOfCart(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddItem(sessionA, "P1", 1))
	res, err := l.Checkout(sessionA)
	require.NoError(t, err)

	require.NoError(t, l.AddItem(sessionA, "P1", 5))

	orders := l.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, 1, orders[0].Items[0].Quantity)
	assert.Equal(t, res.Order.ID, orders[0].ID)
	assert.Equal(t, "", orders[0].UserID)
}

func TestLedger_LoginAndLogout(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Login(sessionA, "u@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, ok := l.CurrentUser(sessionA)
	assert.False(t, ok)

	u, err := l.Login(sessionA, "u@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "U", u.ID)
	current, ok := l.CurrentUser(sessionA)
	require.True(t, ok)
	assert.Equal(t, u, current)

	l.Logout(sessionA)
	_, ok = l.CurrentUser(sessionA)
	assert.False(t, ok)
}

func TestLedger_SessionsAreIsolated(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddItem(sessionA, "P1", 1))

	assert.True(t, l.Cart(sessionB).IsEmpty())
	l.ClearCart(sessionB)
	assert.Len(t, l.Cart(sessionA).Items, 1)
}

func TestLedger_AttachSessionAndRestore(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.AddItem(sessionA, "P1", 2))
	login(t, l, sessionA, "u@example.com")
	snap := l.SessionSnapshot(sessionA)

	fresh := newTestLedger(t)
	assert.False(t, fresh.HasSession(sessionA))
	fresh.AttachSession(snap)
	fresh.Restore([]Order{{ID: "o1", UserID: "U", FinalTotal: decimal.NewFromInt(10)}}, []DiscountCode{{Code: "KEEP0001", Percentage: 10}})

	assert.True(t, fresh.HasSession(sessionA))
	assert.True(t, decimal.NewFromInt(200).Equal(fresh.Cart(sessionA).Total))
	u, ok := fresh.CurrentUser(sessionA)
	require.True(t, ok)
	assert.Equal(t, "U", u.ID)
	assert.Equal(t, 1, fresh.UserOrderCount("U"))
	_, ok = fresh.LookupDiscount("KEEP0001")
	assert.True(t, ok)

	// 修改快照不影响账本
	snap.Cart.clear()
	assert.False(t, fresh.Cart(sessionA).IsEmpty())

	fresh.DropSession(sessionA)
	assert.False(t, fresh.HasSession(sessionA))
}

func TestLedger_CartReadDoesNotCreateSession(t *testing.T) {
	l := newTestLedger(t)

	cart := l.Cart(sessionA)

	assert.True(t, cart.IsEmpty())
	assert.False(t, l.HasSession(sessionA))
}

func TestLedger_PrepareCheckoutLeavesStateUntouched(t *testing.T) {
	l := newTestLedger(t, WithDiscountInterval(1))
	login(t, l, sessionA, "u@example.com")
	require.NoError(t, l.AddItem(sessionA, "P1", 1))

	res, err := l.PrepareCheckout(sessionA)

	require.NoError(t, err)
	assert.Equal(t, CheckoutCommitting, res.State)
	assert.Equal(t, 1, res.UserOrderCount)
	require.NotNil(t, res.IssuedCode)
	assert.Equal(t, 0, l.OrderCount())
	assert.Empty(t, l.DiscountCodes())
	assert.Len(t, l.Cart(sessionA).Items, 1)

	done := l.CommitCheckout(sessionA, res)

	assert.Equal(t, CheckoutDone, done.State)
	assert.Equal(t, 1, l.OrderCount())
	assert.True(t, l.Cart(sessionA).IsEmpty())
	_, ok := l.LookupDiscount(res.IssuedCode.Code)
	assert.True(t, ok)
}

func TestLedger_UsableDiscountDoesNotLatch(t *testing.T) {
	l := newTestLedger(t)
	login(t, l, sessionA, "u@example.com")
	code := l.IssueDiscount("U")

	_, ok := l.UsableDiscount(sessionB, code.Code)
	assert.False(t, ok, "attributed to another user")

	dc, ok := l.UsableDiscount(sessionA, code.Code)
	require.True(t, ok)
	assert.False(t, dc.IsUsed)
	assert.True(t, l.ApplyDiscount(sessionA, code.Code))

	// 回滚恢复未使用状态
	l.RevertDiscount(dc)
	_, ok = l.UsableDiscount(sessionA, code.Code)
	assert.True(t, ok)
	assert.Len(t, l.DiscountCodes(), 1)
}
