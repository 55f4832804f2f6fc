package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/mq"
	"storefront/internal/service/shop/domain"
)

const (
	eventTypeHeader        = "event-type"
	eventTypeOrderPlaced   = "OrderPlaced"
	eventTypeDiscountIssue = "DiscountIssued"
)

// KafkaEventPublisher 实现了 port.EventPublisher，订单和折扣码事件分别写入两个 topic。
// 消息 key 使用用户 ID，同一用户的事件落在同一分区。
type KafkaEventPublisher struct {
	orders    mq.Writer
	discounts mq.Writer
}

func NewKafkaEventPublisher(orders, discounts mq.Writer) *KafkaEventPublisher {
	return &KafkaEventPublisher{orders: orders, discounts: discounts}
}

func (p *KafkaEventPublisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	return p.publish(ctx, p.orders, eventTypeOrderPlaced, partitionKey(event.UserID, event.OrderID), event)
}

func (p *KafkaEventPublisher) PublishDiscountIssued(ctx context.Context, event domain.DiscountIssued) error {
	return p.publish(ctx, p.discounts, eventTypeDiscountIssue, partitionKey(event.UserID, event.Code), event)
}

func (p *KafkaEventPublisher) publish(ctx context.Context, w mq.Writer, eventType string, key []byte, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal %s event", eventType)
	}
	err = mq.ProduceMessage(ctx, w, key, payload, kafka.Header{Key: eventTypeHeader, Value: []byte(eventType)})
	return errors.Wrapf(err, "publish %s event", eventType)
}

// partitionKey 匿名订单没有用户，退化为按实体 ID 分区
func partitionKey(userID, fallback string) []byte {
	if userID != "" {
		return []byte(userID)
	}
	return []byte(fallback)
}
