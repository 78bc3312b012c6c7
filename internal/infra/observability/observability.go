// Package observability exposes the ledger's Prometheus metrics.
package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/obrapay/abono/internal/domain"
)

var (
	paymentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abono_payments_recorded_total",
		Help: "Payments admitted and committed.",
	})

	paymentsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abono_payment_rejections_total",
		Help: "Payments rejected, by business error code.",
	}, []string{"code"})

	paymentsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abono_payments_cancelled_total",
		Help: "Payments soft-cancelled.",
	})

	recordDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "abono_record_payment_seconds",
		Help:    "End-to-end duration of recordPayment, lock wait included.",
		Buckets: prometheus.DefBuckets,
	})
)

// PaymentRecorded counts a committed payment and its duration.
func PaymentRecorded(d time.Duration) {
	paymentsRecorded.Inc()
	recordDuration.Observe(d.Seconds())
}

// PaymentRejected counts a rejection under its machine-readable code.
// Infrastructure failures land under "internal".
func PaymentRejected(err error) {
	code := "internal"
	var de *domain.Error
	if errors.As(err, &de) {
		code = de.Code
	}
	paymentsRejected.WithLabelValues(code).Inc()
}

// PaymentCancelled counts a successful soft cancel.
func PaymentCancelled() {
	paymentsCancelled.Inc()
}
