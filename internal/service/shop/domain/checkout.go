// internal/service/shop/domain/checkout.go
package domain

// CheckoutState 定义了一次结账尝试的生命周期状态
type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "IDLE"
	CheckoutValidating CheckoutState = "VALIDATING"
	CheckoutCommitting CheckoutState = "COMMITTING"
	CheckoutDone       CheckoutState = "DONE"
	CheckoutRejected   CheckoutState = "REJECTED"
)

// CheckoutResult 是结账的产出。
type CheckoutResult struct {
	State      CheckoutState
	Order      Order
	IssuedCode *DiscountCode
	// UserOrderCount 包含本次刚创建的订单。
	UserOrderCount int
	// IssuanceErr 发放规则求值失败时非空；订单本身已提交，不受影响。
	IssuanceErr error
}
