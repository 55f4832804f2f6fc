package application

import "storefront/internal/service/shop/domain"

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse SessionID 由接口层生成或沿用请求头中的值
type LoginResponse struct {
	SessionID string      `json:"sessionId"`
	User      domain.User `json:"user"`
}

type AddItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type RemoveItemRequest struct {
	ItemID string `json:"itemId"`
}

type ApplyDiscountRequest struct {
	Code string `json:"code"`
}

// IssueDiscountRequest UserID 为空时发放通用码
type IssueDiscountRequest struct {
	UserID string `json:"userId"`
}

type ToggleDiscountRequest struct {
	Code string `json:"code"`
}

type DiscountIntervalRequest struct {
	Interval int `json:"interval"`
}

// CheckoutResponse 结账结果，IssuedCode 仅在本单触发奖励时非空
type CheckoutResponse struct {
	Order          domain.Order         `json:"order"`
	IssuedCode     *domain.DiscountCode `json:"issuedCode,omitempty"`
	UserOrderCount int                  `json:"userOrderCount"`
}

// AdminStatsResponse 管理后台首页数据
type AdminStatsResponse struct {
	domain.Stats
	DiscountInterval int                   `json:"discountInterval"`
	DiscountCodes    []domain.DiscountCode `json:"discountCodes"`
}
