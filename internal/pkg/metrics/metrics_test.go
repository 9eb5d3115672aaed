package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/api/cart", 200, time.Millisecond)
		m.OrderCreated(100, 900)
		m.PaymentOutcome("succeeded")
		m.JobRun("sweep", time.Second, nil)
		m.BreakerState("stripe", 2)
	})
	assert.Nil(t, New(nil))
}

func TestCountersAccumulate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/api/cart", 200, 5*time.Millisecond)
	m.ObserveHTTP("GET", "/api/cart", 200, 5*time.Millisecond)
	m.OrderCreated(150, 850)
	m.JobRun("flash_sale_sweep", time.Second, nil)
	m.JobRun("flash_sale_sweep", time.Second, errors.New("db down"))
	m.FlashSaleReservation(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/cart", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.orderRevenue.WithLabelValues("platform")))
	assert.Equal(t, 850.0, testutil.ToFloat64(m.orderRevenue.WithLabelValues("tenant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("flash_sale_sweep", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.flashSaleReserved.WithLabelValues("sold_out")))
}
