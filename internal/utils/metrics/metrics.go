// internal/utils/metrics/metrics.go
package metrics

import (
	"errors"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics собирает метрики попыток RPC по методам и эндпоинтам.
// Нулевой указатель допустим: все методы становятся no-op.
type RPCMetrics struct {
	attempts  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	exhausted *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewRPCMetrics создает метрики и регистрирует их в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &RPCMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "perps",
				Subsystem: "rpc",
				Name:      "attempts_total",
				Help:      "RPC attempts per method and endpoint",
			},
			[]string{"method", "endpoint"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "perps",
				Subsystem: "rpc",
				Name:      "failures_total",
				Help:      "Failed RPC attempts per method and endpoint",
			},
			[]string{"method", "endpoint"},
		),
		exhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "perps",
				Subsystem: "rpc",
				Name:      "exhausted_total",
				Help:      "Calls for which every endpoint failed",
			},
			[]string{"method"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "perps",
				Subsystem: "rpc",
				Name:      "latency_seconds",
				Help:      "RPC attempt latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"method"},
		),
	}

	m.attempts = register(reg, m.attempts)
	m.failures = register(reg, m.failures)
	m.exhausted = register(reg, m.exhausted)
	m.latency = register(reg, m.latency)

	return m
}

// ObserveAttempt учитывает одну попытку вызова method на endpoint.
func (m *RPCMetrics) ObserveAttempt(method, endpoint string, d time.Duration, err error) {
	if m == nil {
		return
	}
	host := endpointLabel(endpoint)
	m.attempts.WithLabelValues(method, host).Inc()
	m.latency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		m.failures.WithLabelValues(method, host).Inc()
	}
}

// ObserveExhausted учитывает вызов, для которого отказали все эндпоинты.
func (m *RPCMetrics) ObserveExhausted(method string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(method).Inc()
}

// endpointLabel отрезает path и query, чтобы ключи API не попадали в метки.
func endpointLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// register регистрирует коллектор; при повторной регистрации (второй экземпляр
// в процессе) возвращает уже зарегистрированный.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
