// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

var (
	// OrdersPlaced 成功结账的订单数
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_placed_total",
		Help:      "Number of orders committed by checkout.",
	})

	// Revenue 累计实收金额（折后）
	Revenue = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "revenue_total",
		Help:      "Sum of order final totals.",
	})

	DiscountGiven = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discount_amount_total",
		Help:      "Sum of discount amounts granted at checkout.",
	})

	// DiscountsIssued 按发放原因（milestone / admin）统计
	DiscountsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discount_codes_issued_total",
		Help:      "Number of discount codes issued.",
	}, []string{"reason"})

	// DiscountApplications 按结果（accepted / rejected）统计
	DiscountApplications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discount_applications_total",
		Help:      "Discount code application attempts.",
	}, []string{"result"})

	CartMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_mutations_total",
		Help:      "Cart mutations by operation.",
	}, []string{"op"})

	CheckoutRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_rejected_total",
		Help:      "Checkout attempts rejected, by reason.",
	}, []string{"reason"})

	// PersistenceErrors 写穿持久化失败次数
	PersistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_errors_total",
		Help:      "Failed write-through operations by store.",
	}, []string{"store"})

	StatsSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stats_subscribers",
		Help:      "Connected admin stats websocket clients.",
	})
)

// ObserveOrder 记录一笔已提交订单的金额。
func ObserveOrder(finalTotal, discount float64) {
	OrdersPlaced.Inc()
	Revenue.Add(finalTotal)
	if discount > 0 {
		DiscountGiven.Add(discount)
	}
}
