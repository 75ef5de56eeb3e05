// internal/utils/metrics/collector.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Статусы отправки транзакции
const (
	TxConfirmed  = "confirmed"
	TxSendFailed = "send_failed"
	TxFailed     = "failed"
)

// TxMetrics учитывает отправленные транзакции по операциям.
// Нулевой указатель допустим.
type TxMetrics struct {
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

func NewTxMetrics(reg prometheus.Registerer) *TxMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &TxMetrics{
		transactions: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "perps",
				Name:      "transactions_total",
				Help:      "Transactions sent, by operation and outcome",
			},
			[]string{"operation", "status"},
		)),
		duration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "perps",
				Name:      "transaction_duration_seconds",
				Help:      "Time from send to confirmation",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"operation"},
		)),
	}
}

// ObserveTransaction фиксирует исход и длительность отправки.
func (m *TxMetrics) ObserveTransaction(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.transactions.WithLabelValues(operation, status).Inc()
	if status == TxConfirmed {
		m.duration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
