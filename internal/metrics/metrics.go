// Package metrics коллекторы Prometheus консоли заявок.
package metrics

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"github.com/xela07ax/mapasculturais/internal/hooks"
)

type Metrics struct {
	// Transitions: переходы статусов по целевому статусу
	StatusTransitions *prometheus.CounterVec

	// Latency: сколько заняла отправка (архив + снимок агентов)
	SendDuration prometheus.Histogram

	// Отказы валидации при отправке, по ключу ошибки (category, registration-agent-*, ...)
	ValidationFailures *prometheus.CounterVec

	// Отказы проверки прав по действию
	PermissionDenied *prometheus.CounterVec

	// Отсечено лимитером входа
	LoginThrottled prometheus.Counter

	// Saturation: состояние Circuit Breaker публикатора (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		StatusTransitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mapas_registration_status_transitions_total",
			Help: "Total number of registration status transitions.",
		}, []string{"status"}),

		SendDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "mapas_registration_send_duration_seconds",
			Help:    "Histogram of registration send latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		ValidationFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mapas_registration_validation_failures_total",
			Help: "Total number of send validation errors by error key kind.",
		}, []string{"kind"}), // category, agent, file, owner

		PermissionDenied: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mapas_permission_denied_total",
			Help: "Total number of denied capability checks.",
		}, []string{"action"}),

		LoginThrottled: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "mapas_login_throttled_total",
			Help: "Total number of login attempts rejected by the rate limiter.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "mapas_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"name"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mapas_audit_buffer_utilization",
			Help: "Current number of events in audit buffer.",
		}),
	}
}

// StatusListener считает переходы статусов
func (m *Metrics) StatusListener() hooks.Listener {
	return func(_ context.Context, _ string, reg *domain.Registration) error {
		m.StatusTransitions.WithLabelValues(reg.Status().String()).Inc()
		return nil
	}
}

// ObserveSend фиксирует длительность отправки
func (m *Metrics) ObserveSend(started time.Time) {
	m.SendDuration.Observe(time.Since(started).Seconds())
}

// ObserveValidation раскладывает ошибки валидации по видам ключей
func (m *Metrics) ObserveValidation(errs domain.ValidationErrors) {
	for key := range errs {
		m.ValidationFailures.WithLabelValues(keyKind(key)).Inc()
	}
}

func (m *Metrics) ObserveDenied(action string) {
	m.PermissionDenied.WithLabelValues(action).Inc()
}

// SetBreakerOpen отражает состояние предохранителя
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

func keyKind(key string) string {
	switch {
	case key == "category" || key == "owner":
		return key
	case strings.HasPrefix(key, "registration-agent-"):
		return "agent"
	case strings.HasPrefix(key, "registration-file-"):
		return "file"
	default:
		return "other"
	}
}
