// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the clinical workflow counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	encountersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encounters_created_total",
			Help: "Total number of treatment records opened",
		},
		[]string{"origin"},
	)

	consultationsFinalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consultations_finalized_total",
			Help: "Total number of consultations finalized",
		},
	)

	consultationDrafts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consultation_drafts_total",
			Help: "Total number of consultation draft saves",
		},
	)

	referralsBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_blocked_total",
			Help: "Total number of referral creations blocked as duplicates",
		},
	)

	identityResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_resolutions_total",
			Help: "Total number of patient identity resolutions",
		},
		[]string{"outcome"},
	)

	aiSuggestionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_suggestion_requests_total",
			Help: "Total number of AI differential-diagnosis requests",
		},
		[]string{"status"},
	)
)

// RecordEncounterCreated increments the encounter counter for an origin tag.
func RecordEncounterCreated(origin string) {
	encountersCreated.WithLabelValues(origin).Inc()
}

// RecordConsultationFinalized increments the finalize counter.
func RecordConsultationFinalized() {
	consultationsFinalized.Inc()
}

// RecordConsultationDraft increments the draft-save counter.
func RecordConsultationDraft() {
	consultationDrafts.Inc()
}

// RecordReferralBlocked increments the duplicate-referral counter.
func RecordReferralBlocked() {
	referralsBlocked.Inc()
}

// RecordIdentityResolution increments the resolution counter ("found" or
// "not_found").
func RecordIdentityResolution(outcome string) {
	identityResolutions.WithLabelValues(outcome).Inc()
}

// RecordAISuggestion increments the adapter counter ("ok", "error").
func RecordAISuggestion(status string) {
	aiSuggestionRequests.WithLabelValues(status).Inc()
}

// HTTPMiddleware instruments every request with count and duration.
func HTTPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			httpRequestsTotal.WithLabelValues(
				c.Request().Method, path, strconv.Itoa(c.Response().Status),
			).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).
				Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
