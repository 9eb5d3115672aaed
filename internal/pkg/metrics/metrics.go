package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "drinksharbour"

// Metrics holds the application's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	ordersCreated     prometheus.Counter
	orderRevenue      *prometheus.CounterVec
	payments          *prometheus.CounterVec
	couponRedemptions *prometheus.CounterVec
	flashSaleReserved *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobRuns           *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

// New registers all collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders placed.",
		}),
		orderRevenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_revenue_cents_total",
			Help:      "Order revenue split by party.",
		}, []string{"party"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment confirmations by outcome.",
		}, []string{"outcome"}),
		couponRedemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_redemptions_total",
			Help:      "Coupons redeemed on orders.",
		}, []string{"type"}),
		flashSaleReserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flash_sale_reservations_total",
			Help:      "Flash sale allocation reservations by result.",
		}, []string{"result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled jobs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by result.",
		}, []string{"job", "result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration, m.ordersCreated, m.orderRevenue, m.payments,
		m.couponRedemptions, m.flashSaleReserved, m.jobDuration, m.jobRuns, m.breakerState,
	)
	return m
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// OrderCreated records a placed order and its revenue split
func (m *Metrics) OrderCreated(platformCents, tenantCents int64) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.orderRevenue.WithLabelValues("platform").Add(float64(platformCents))
	m.orderRevenue.WithLabelValues("tenant").Add(float64(tenantCents))
}

// PaymentOutcome records a payment confirmation result
func (m *Metrics) PaymentOutcome(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

// CouponRedeemed records a coupon redemption
func (m *Metrics) CouponRedeemed(couponType string) {
	if m == nil {
		return
	}
	m.couponRedemptions.WithLabelValues(couponType).Inc()
}

// FlashSaleReservation records an allocation attempt
func (m *Metrics) FlashSaleReservation(ok bool) {
	if m == nil {
		return
	}
	result := "reserved"
	if !ok {
		result = "sold_out"
	}
	m.flashSaleReserved.WithLabelValues(result).Inc()
}

// JobRun records a scheduled job execution
func (m *Metrics) JobRun(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if job == "" {
		job = "unknown"
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
	m.jobRuns.WithLabelValues(job, result).Inc()
}

// BreakerState records a circuit breaker transition
func (m *Metrics) BreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}
