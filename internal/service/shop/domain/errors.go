// internal/service/shop/domain/errors.go
package domain

import "errors"

// 领域层的预期失败，调用方通过 errors.Is 判断，不会 panic。
var (
	ErrProductNotFound      = errors.New("product not found")
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
	ErrInvalidDiscountCode  = errors.New("invalid or already used discount code")
	ErrDiscountCodeNotFound = errors.New("discount code not found")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidInterval      = errors.New("discount interval must not be negative")
	ErrSessionNotFound      = errors.New("session not found")
)
