// internal/service/shop/domain/port/events.go
package port

import (
	"context"

	"storefront/internal/service/shop/domain"
)

// EventPublisher 是领域事件的出站端口。
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error
	PublishDiscountIssued(ctx context.Context, event domain.DiscountIssued) error
}
