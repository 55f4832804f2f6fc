// internal/service/shop/domain/event.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlaced 是结账成功后发布的事件
type OrderPlaced struct {
	OrderID        string          `json:"orderId"`
	UserID         string          `json:"userId,omitempty"`
	ItemCount      int             `json:"itemCount"`
	Total          decimal.Decimal `json:"total"`
	DiscountCode   string          `json:"discountCode,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
	PlacedAt       time.Time       `json:"placedAt"`
}

// DiscountIssued 在发放新折扣码时发布，Reason 区分里程碑奖励和管理员手动发放
type DiscountIssued struct {
	Code       string    `json:"code"`
	Percentage int       `json:"percentage"`
	UserID     string    `json:"userId,omitempty"`
	Reason     string    `json:"reason"`
	IssuedAt   time.Time `json:"issuedAt"`
}

const (
	IssueReasonMilestone = "milestone"
	IssueReasonAdmin     = "admin"
)

func NewOrderPlaced(o Order) OrderPlaced {
	return OrderPlaced{
		OrderID:        o.ID,
		UserID:         o.UserID,
		ItemCount:      o.ItemCount(),
		Total:          o.Total,
		DiscountCode:   o.DiscountCode,
		DiscountAmount: o.DiscountAmount,
		FinalTotal:     o.FinalTotal,
		PlacedAt:       o.CreatedAt,
	}
}

func NewDiscountIssued(dc DiscountCode, reason string) DiscountIssued {
	return DiscountIssued{
		Code:       dc.Code,
		Percentage: dc.Percentage,
		UserID:     dc.UserID,
		Reason:     reason,
		IssuedAt:   dc.CreatedAt,
	}
}
