package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func product(id, price string) Product {
	return Product{ID: id, Name: "product " + id, Price: decimal.RequireFromString(price)}
}

// assertConsistent 检查购物车的派生字段与行项目一致。
func assertConsistent(t *testing.T, c *Cart) {
	t.Helper()
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, sum.Equal(c.Total), "total %s != sum %s", c.Total, sum)
	assert.True(t, c.FinalTotal().Equal(c.Total.Sub(c.DiscountAmount())))
	if c.Discount != nil {
		expected := c.Total.Mul(decimal.NewFromInt(int64(c.Discount.Percentage))).Div(decimal.NewFromInt(100))
		assert.True(t, expected.Equal(c.Discount.Amount), "discount %s != %s", c.Discount.Amount, expected)
	}
}

func TestCart_AddMergesLinesForSameProduct(t *testing.T) {
	c := NewCart()
	ids := seqIDs("item")

	c.add(product("p1", "100.00"), 2, ids)
	c.add(product("p1", "100.00"), 3, ids)
	c.add(product("p2", "0.50"), 1, ids)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "item-1", c.Items[0].ID)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, "item-2", c.Items[1].ID)
	assert.True(t, decimal.RequireFromString("500.50").Equal(c.Total))
	assert.Equal(t, 6, c.ItemCount())
	assertConsistent(t, c)
}

func TestCart_InvariantHoldsAcrossMutations(t *testing.T) {
	c := NewCart()
	ids := seqIDs("item")

	c.add(product("p1", "699.99"), 1, ids)
	assertConsistent(t, c)
	c.add(product("p2", "19.99"), 3, ids)
	assertConsistent(t, c)
	c.applyDiscount(DiscountCode{Code: "SAVE10", Percentage: 10})
	assertConsistent(t, c)
	c.setQuantity("item-2", 7)
	assertConsistent(t, c)
	c.remove("item-1")
	assertConsistent(t, c)
	c.setQuantity("item-2", 0)
	assertConsistent(t, c)

	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total.IsZero())
	// 折扣仍然挂在购物车上，只是金额跟随总价归零
	require.NotNil(t, c.Discount)
	assert.True(t, c.Discount.Amount.IsZero())
}

func TestCart_RemoveUnknownItemIsNoop(t *testing.T) {
	c := NewCart()
	c.add(product("p1", "100.00"), 2, seqIDs("item"))
	c.applyDiscount(DiscountCode{Code: "X", Percentage: 10})
	before, err := json.Marshal(c)
	require.NoError(t, err)

	c.remove("does-not-exist")
	c.setQuantity("does-not-exist", 4)

	after, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.True(t, decimal.NewFromInt(180).Equal(c.FinalTotal()))
}

func TestCart_ClearDropsDiscount(t *testing.T) {
	c := NewCart()
	c.add(product("p1", "100.00"), 2, seqIDs("item"))
	c.applyDiscount(DiscountCode{Code: "X", Percentage: 10})

	c.clear()

	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.Discount)
	assert.True(t, c.Total.IsZero())
	assert.True(t, c.FinalTotal().IsZero())
	assert.Equal(t, "", c.DiscountCode())
}

func TestCart_CloneIsIndependent(t *testing.T) {
	c := NewCart()
	c.add(product("p1", "10.00"), 1, seqIDs("item"))
	c.applyDiscount(DiscountCode{Code: "X", Percentage: 50})

	snap := c.Clone()
	c.setQuantity("item-1", 9)

	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("5").Equal(snap.Discount.Amount))
}

func TestCart_JSONRecomputesDerivedFields(t *testing.T) {
	c := NewCart()
	c.add(product("p1", "100.00"), 2, seqIDs("item"))
	c.applyDiscount(DiscountCode{Code: "SAVE", Percentage: 10})

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var view map[string]any
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, "SAVE", view["discountCode"])
	assert.Equal(t, "20", view["discountAmount"])
	assert.Equal(t, "180", view["finalTotal"])

	// 篡改派生字段，反序列化时应被忽略
	view["total"] = "1"
	view["finalTotal"] = "1"
	tampered, err := json.Marshal(view)
	require.NoError(t, err)

	var back Cart
	require.NoError(t, json.Unmarshal(tampered, &back))
	assert.True(t, decimal.NewFromInt(200).Equal(back.Total))
	assert.True(t, decimal.NewFromInt(180).Equal(back.FinalTotal()))
	assertConsistent(t, &back)
}

func TestCart_EmptyMarshalsItemsArray(t *testing.T) {
	data, err := json.Marshal(Cart{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items":[]`)
	assert.NotContains(t, string(data), "discountCode")
}
