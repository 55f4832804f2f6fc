// internal/service/shop/domain/repository.go
package domain

import "context"

// LedgerRepository 定义了账本（订单、折扣码、发放间隔）的持久化接口。
// 它位于领域层，但由基础设施层实现。
type LedgerRepository interface {
	LoadOrders(ctx context.Context) ([]Order, error)
	// SaveCheckout 原子地写入新订单和随之发放的折扣码（issued 可为 nil）。
	SaveCheckout(ctx context.Context, order *Order, issued *DiscountCode) error

	LoadDiscountCodes(ctx context.Context) ([]DiscountCode, error)
	// SaveDiscountCode 新增或更新一条折扣码记录。
	SaveDiscountCode(ctx context.Context, code *DiscountCode) error

	// LoadDiscountInterval 第二个返回值表示是否存在已保存的值。
	LoadDiscountInterval(ctx context.Context) (int, bool, error)
	SaveDiscountInterval(ctx context.Context, interval int) error
}

// SessionRepository 保存会话状态（当前用户与购物车）。
type SessionRepository interface {
	// Get 找不到时返回 ErrSessionNotFound。
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}
