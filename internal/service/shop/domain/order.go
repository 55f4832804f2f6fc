// internal/service/shop/domain/order.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 是结账时购物车的不可变快照。
// Items 是独立副本，之后对购物车的修改不会影响历史订单。
type Order struct {
	ID             string          `json:"id"`
	Items          []CartItem      `json:"items"`
	Total          decimal.Decimal `json:"total"`
	DiscountCode   string          `json:"discountCode,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
	CreatedAt      time.Time       `json:"createdAt"`
	UserID         string          `json:"userId,omitempty"`
}

// newOrderFromCart 工厂函数，拷贝购物车的行项目与金额。
func newOrderFromCart(id string, cart *Cart, userID string, at time.Time) Order {
	snapshot := cart.Clone()
	return Order{
		ID:             id,
		Items:          snapshot.Items,
		Total:          snapshot.Total,
		DiscountCode:   snapshot.DiscountCode(),
		DiscountAmount: snapshot.DiscountAmount(),
		FinalTotal:     snapshot.FinalTotal(),
		CreatedAt:      at,
		UserID:         userID,
	}
}

func (o Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

func (o Order) clone() Order {
	items := make([]CartItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// Stats 是订单日志上的只读汇总，字段名与管理后台接口保持一致。
type Stats struct {
	TotalSales     decimal.Decimal `json:"totalSales"`
	TotalItems     int             `json:"totalItems"`
	TotalDiscounts decimal.Decimal `json:"totalDiscounts"`
	TotalOrders    int             `json:"totalOrders"`
}

// OrderLog 只追加的订单历史。
type OrderLog struct {
	orders []Order
}

func NewOrderLog() *OrderLog {
	return &OrderLog{}
}

func (l *OrderLog) Append(o Order) {
	l.orders = append(l.orders, o.clone())
}

func (l *OrderLog) Len() int {
	return len(l.orders)
}

// CountForUser 统计某个用户的订单数，匿名订单不计入任何用户。
func (l *OrderLog) CountForUser(userID string) int {
	if userID == "" {
		return 0
	}
	n := 0
	for _, o := range l.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n
}

func (l *OrderLog) All() []Order {
	out := make([]Order, len(l.orders))
	for i, o := range l.orders {
		out[i] = o.clone()
	}
	return out
}

// Stats 每次都在日志上重新折叠，规模很小不需要缓存。
func (l *OrderLog) Stats() Stats {
	s := Stats{TotalSales: decimal.Zero, TotalDiscounts: decimal.Zero}
	for _, o := range l.orders {
		s.TotalSales = s.TotalSales.Add(o.FinalTotal)
		s.TotalItems += o.ItemCount()
		s.TotalDiscounts = s.TotalDiscounts.Add(o.DiscountAmount)
		s.TotalOrders++
	}
	return s
}

func (l *OrderLog) restore(orders []Order) {
	l.orders = l.orders[:0]
	for _, o := range orders {
		l.Append(o)
	}
}
