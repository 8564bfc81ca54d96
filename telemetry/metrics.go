// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	SessionsCreated  prometheus.Counter
	JoinNotices      prometheus.Counter
	ThreadRenames    prometheus.Counter
	SessionsArchived prometheus.Counter
	SessionsDeleted  prometheus.Counter
	BindingsSwept    prometheus.Counter
	RenameRequests   prometheus.Counter
	RenameDenied     prometheus.Counter
	HandlerErrors    prometheus.Counter

	// Histograms (seconds)
	EventDuration prometheus.Observer

	// Gauges
	ActiveBindingsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_sessions_created_total", Help: "Number of voice sessions bound to a new thread"})
		JoinNotices = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_join_notices_total", Help: "Number of join notices posted to session threads"})
		ThreadRenames = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_thread_renames_total", Help: "Number of thread renames following a VC rename"})
		SessionsArchived = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_sessions_archived_total", Help: "Number of session threads archived on retirement"})
		SessionsDeleted = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_sessions_deleted_total", Help: "Number of session threads deleted on retirement"})
		BindingsSwept = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_bindings_swept_total", Help: "Number of stale bindings retired by the sweeper"})
		RenameRequests = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_rename_requests_total", Help: "Number of rename modals opened"})
		RenameDenied = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_rename_denied_total", Help: "Number of rename attempts rejected for missing permission"})
		HandlerErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "vc_handler_errors_total", Help: "Number of gateway events whose handling failed"})
		EventDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "vc_event_handle_duration_seconds", Help: "Gateway event handling duration seconds", Buckets: prometheus.DefBuckets})
		ActiveBindingsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "vc_active_bindings", Help: "Current number of live VC-to-thread bindings"})
	})
}

// SetActiveBindings records the current number of live bindings.
func SetActiveBindings(n int) {
	if ActiveBindingsGauge != nil {
		ActiveBindingsGauge.Set(float64(n))
	}
}

// ObserveEventDuration records one gateway event's handling duration if metrics are initialized.
func ObserveEventDuration(d time.Duration) {
	if EventDuration != nil {
		EventDuration.Observe(d.Seconds())
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
