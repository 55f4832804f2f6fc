// internal/service/shop/domain/cart.go
package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CartItem 是购物车中的一行，持有商品的副本。
type CartItem struct {
	ID       string  `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AppliedDiscount 表示购物车上已生效的折扣码。
// Discount 为 nil 即"未使用折扣"，两种状态在结构上区分开。
type AppliedDiscount struct {
	Code       string          `json:"code"`
	Percentage int             `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// Cart 是会话级别的购物车聚合。
// Total 和 Discount.Amount 都是派生字段，只能由 recomputeTotals 写入。
type Cart struct {
	Items    []CartItem
	Total    decimal.Decimal
	Discount *AppliedDiscount
}

func NewCart() *Cart {
	return &Cart{Items: []CartItem{}, Total: decimal.Zero}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// DiscountAmount 未使用折扣时为 0。
func (c *Cart) DiscountAmount() decimal.Decimal {
	if c.Discount == nil {
		return decimal.Zero
	}
	return c.Discount.Amount
}

func (c *Cart) FinalTotal() decimal.Decimal {
	return c.Total.Sub(c.DiscountAmount())
}

func (c *Cart) DiscountCode() string {
	if c.Discount == nil {
		return ""
	}
	return c.Discount.Code
}

// ItemCount 是所有行的数量之和。
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// Clone 深拷贝，外部读者拿到的快照不会被后续修改影响。
func (c *Cart) Clone() Cart {
	out := Cart{
		Items: make([]CartItem, len(c.Items)),
		Total: c.Total,
	}
	copy(out.Items, c.Items)
	if c.Discount != nil {
		d := *c.Discount
		out.Discount = &d
	}
	return out
}

func (c *Cart) findByProduct(productID string) int {
	for i, item := range c.Items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) findByID(itemID string) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) add(product Product, quantity int, newID func() string) {
	if i := c.findByProduct(product.ID); i >= 0 {
		c.Items[i].Quantity += quantity
	} else {
		c.Items = append(c.Items, CartItem{ID: newID(), Product: product, Quantity: quantity})
	}
	c.recomputeTotals()
}

func (c *Cart) remove(itemID string) {
	if i := c.findByID(itemID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
	c.recomputeTotals()
}

func (c *Cart) setQuantity(itemID string, quantity int) {
	if quantity <= 0 {
		c.remove(itemID)
		return
	}
	if i := c.findByID(itemID); i >= 0 {
		c.Items[i].Quantity = quantity
	}
	c.recomputeTotals()
}

func (c *Cart) clear() {
	c.Items = []CartItem{}
	c.Discount = nil
	c.recomputeTotals()
}

func (c *Cart) applyDiscount(code DiscountCode) {
	c.Discount = &AppliedDiscount{Code: code.Code, Percentage: code.Percentage}
	c.recomputeTotals()
}

// recomputeTotals 是唯一写入派生字段的地方，每个修改操作结束时调用。
func (c *Cart) recomputeTotals() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.Total = total
	if c.Discount != nil {
		c.Discount.Amount = total.Mul(decimal.NewFromInt(int64(c.Discount.Percentage))).Div(hundred)
	}
}

type cartJSON struct {
	Items              []CartItem      `json:"items"`
	Total              decimal.Decimal `json:"total"`
	DiscountCode       string          `json:"discountCode,omitempty"`
	DiscountPercentage int             `json:"discountPercentage,omitempty"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	FinalTotal         decimal.Decimal `json:"finalTotal"`
}

// MarshalJSON 输出与前端约定一致的扁平结构。
func (c Cart) MarshalJSON() ([]byte, error) {
	items := c.Items
	if items == nil {
		items = []CartItem{}
	}
	v := cartJSON{
		Items:          items,
		Total:          c.Total,
		DiscountAmount: c.DiscountAmount(),
		FinalTotal:     c.FinalTotal(),
	}
	if c.Discount != nil {
		v.DiscountCode = c.Discount.Code
		v.DiscountPercentage = c.Discount.Percentage
	}
	return json.Marshal(v)
}

// UnmarshalJSON 只信任行项目和折扣码，派生字段重新计算。
func (c *Cart) UnmarshalJSON(data []byte) error {
	var v cartJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.Items = v.Items
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	c.Discount = nil
	if v.DiscountCode != "" {
		c.Discount = &AppliedDiscount{Code: v.DiscountCode, Percentage: v.DiscountPercentage}
	}
	c.recomputeTotals()
	return nil
}
