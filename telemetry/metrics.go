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
	WebhookEvents          *prometheus.CounterVec // label: result (success|ignored|rejected|error)
	MatchesCreated         prometheus.Counter
	MatchesClosed          prometheus.Counter
	ChannelsProvisioned    prometheus.Counter
	ChannelsTornDown       prometheus.Counter
	ProvisioningFailures   prometheus.Counter
	VerificationsStarted   prometheus.Counter
	VerificationsCompleted prometheus.Counter
	VerificationsFailed    prometheus.Counter

	// Histograms (seconds)
	MatchFetchDuration prometheus.Observer

	// Gauges
	PendingVerificationsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{Name: "matchroom_webhook_events_total", Help: "Webhook deliveries by outcome"}, []string{"result"})
		MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_matches_created_total", Help: "Match records created"})
		MatchesClosed = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_matches_closed_total", Help: "Match records closed"})
		ChannelsProvisioned = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_channels_provisioned_total", Help: "Faction voice channels created"})
		ChannelsTornDown = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_channels_torn_down_total", Help: "Faction voice channels deleted"})
		ProvisioningFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_provisioning_failures_total", Help: "Per-faction provisioning failures"})
		VerificationsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_verifications_started_total", Help: "Account verification flows begun"})
		VerificationsCompleted = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_verifications_completed_total", Help: "Account verification flows completed"})
		VerificationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "matchroom_verifications_failed_total", Help: "Account verification flows failed after callback"})
		MatchFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "matchroom_match_fetch_duration_seconds", Help: "FACEIT match details fetch duration seconds", Buckets: prometheus.DefBuckets})
		PendingVerificationsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "matchroom_pending_verifications", Help: "Pending verification entries currently held"})
	})
}

// Inc increments a counter if metrics are initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// CountWebhook records one webhook delivery outcome.
func CountWebhook(result string) {
	if WebhookEvents != nil {
		WebhookEvents.WithLabelValues(result).Inc()
	}
}

// SetPendingVerifications records the current pending verification count.
func SetPendingVerifications(n int) {
	if PendingVerificationsGauge != nil {
		PendingVerificationsGauge.Set(float64(n))
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
