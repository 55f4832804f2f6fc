// internal/service/shop/domain/rule.go
package domain

// IssuanceRule 决定一笔订单是否为用户发放新的折扣码。
// orderCount 已经包含了刚刚提交的那笔订单。
type IssuanceRule interface {
	ShouldIssue(orderCount, interval int) (bool, error)
}

// MilestoneRule 是默认规则：每第 N 笔订单发放一次，N = 0 时关闭。
type MilestoneRule struct{}

func (MilestoneRule) ShouldIssue(orderCount, interval int) (bool, error) {
	return interval > 0 && orderCount%interval == 0, nil
}
