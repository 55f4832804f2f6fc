package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOrder(t *testing.T) {
	orders := testutil.ToFloat64(OrdersPlaced)
	revenue := testutil.ToFloat64(Revenue)
	discount := testutil.ToFloat64(DiscountGiven)

	ObserveOrder(180, 20)
	ObserveOrder(50, 0)

	assert.Equal(t, orders+2, testutil.ToFloat64(OrdersPlaced))
	assert.InDelta(t, revenue+230, testutil.ToFloat64(Revenue), 1e-9)
	assert.InDelta(t, discount+20, testutil.ToFloat64(DiscountGiven), 1e-9)
}

func TestDiscountsIssuedByReason(t *testing.T) {
	before := testutil.ToFloat64(DiscountsIssued.WithLabelValues("admin"))

	DiscountsIssued.WithLabelValues("admin").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(DiscountsIssued.WithLabelValues("admin")))
}
