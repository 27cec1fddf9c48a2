// Package metrics exposes Prometheus collectors for the settlement flows.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector. A nil *Metrics records nothing.
type Metrics struct {
	requestCounter       *prometheus.CounterVec
	requestLatency       *prometheus.HistogramVec
	gatewayOperations    *prometheus.CounterVec
	webhookNotifications *prometheus.CounterVec
	statusTransitions    *prometheus.CounterVec
	payouts              *prometheus.CounterVec
	payoutLatency        *prometheus.HistogramVec
	reconciliationChecks *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		gatewayOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_gateway_operations_total",
				Help: "Payment gateway calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		webhookNotifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_webhook_notifications_total",
				Help: "Gateway notifications by processing outcome",
			},
			[]string{"outcome"},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_payment_status_transitions_total",
				Help: "Applied payment status transitions",
			},
			[]string{"from", "to"},
		),
		payouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_payouts_total",
				Help: "Crypto payouts by network, currency and outcome",
			},
			[]string{"network", "currency", "outcome"},
		),
		payoutLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_payout_duration_seconds",
				Help:    "Time from payout claim to broadcast",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"network"},
		),
		reconciliationChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_reconciliation_checks_total",
				Help: "Stale captures checked against the gateway",
			},
			[]string{"status", "gateway_result"},
		),
	}

	reg.MustRegister(
		m.requestCounter,
		m.requestLatency,
		m.gatewayOperations,
		m.webhookNotifications,
		m.statusTransitions,
		m.payouts,
		m.payoutLatency,
		m.reconciliationChecks,
	)

	return m
}

// Middleware records request counts and latency by route
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}

			m.requestCounter.WithLabelValues(c.Request().Method, endpoint, strconv.Itoa(status)).Inc()
			m.requestLatency.WithLabelValues(c.Request().Method, endpoint).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) GatewayOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.gatewayOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) WebhookNotification(outcome string) {
	if m == nil {
		return
	}
	m.webhookNotifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Payout(network, currency, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(network, currency, outcome).Inc()
	m.payoutLatency.WithLabelValues(network).Observe(elapsed.Seconds())
}

func (m *Metrics) ReconciliationCheck(status, gatewayResult string) {
	if m == nil {
		return
	}
	m.reconciliationChecks.WithLabelValues(status, gatewayResult).Inc()
}
