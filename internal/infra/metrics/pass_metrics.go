package metrics

import (
	"errors"
	"strings"

	"lodge_billing_notifier/internal/app"

	"github.com/prometheus/client_golang/prometheus"
)

// Config labels every collector with the running service.
type Config struct {
	ServiceName string
	Environment string
}

// PassMetrics exports notification pass outcomes. It implements app.PassObserver.
type PassMetrics struct {
	passes        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	warnings      prometheus.Counter
	duration      prometheus.Histogram
	lastSuccess   prometheus.Gauge
	pruned        prometheus.Counter
}

func NewPassMetrics(registerer prometheus.Registerer, cfg Config) *PassMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "lodge_notifier"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	passes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "notifier_passes_total",
			Help:        "Notification passes by result",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	notifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "notifier_notifications_total",
			Help:        "Due notifications by outcome",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	warnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "notifier_rule_warnings_total",
		Help:        "Malformed rules skipped during passes",
		ConstLabels: constLabels,
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "notifier_pass_duration_seconds",
		Help:        "Wall time of notification passes",
		ConstLabels: constLabels,
		Buckets:     []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "notifier_last_successful_pass_timestamp_seconds",
		Help:        "Unix time of the last pass that completed without error",
		ConstLabels: constLabels,
	})
	pruned := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "notifier_ledger_pruned_total",
		Help:        "Execution records removed by retention",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(passes, notifications, warnings, duration, lastSuccess, pruned)

	return &PassMetrics{
		passes:        passes,
		notifications: notifications,
		warnings:      warnings,
		duration:      duration,
		lastSuccess:   lastSuccess,
		pruned:        pruned,
	}
}

func passResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, app.ErrPassInProgress):
		return "locked"
	case errors.Is(err, app.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, app.ErrLedgerWrite):
		return "ledger_error"
	default:
		return "error"
	}
}

func (m *PassMetrics) ObservePass(report *app.PassReport, err error) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(passResult(err)).Inc()
	if report == nil {
		return
	}

	m.notifications.WithLabelValues("sent").Add(float64(report.Sent))
	m.notifications.WithLabelValues("failed").Add(float64(report.Failed))
	m.notifications.WithLabelValues("pending").Add(float64(report.Pending))
	m.notifications.WithLabelValues("duplicate").Add(float64(report.Duplicates))
	m.notifications.WithLabelValues("skipped").Add(float64(report.Skipped))
	m.warnings.Add(float64(len(report.Warnings)))

	if elapsed := report.FinishedAt.Sub(report.StartedAt); elapsed >= 0 {
		m.duration.Observe(elapsed.Seconds())
	}
	if err == nil {
		m.lastSuccess.Set(float64(report.FinishedAt.Unix()))
	}
}

func (m *PassMetrics) ObservePrune(removed int64) {
	if m == nil || removed <= 0 {
		return
	}
	m.pruned.Add(float64(removed))
}
