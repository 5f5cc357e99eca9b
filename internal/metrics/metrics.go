// Package metrics holds the kiosk's prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturesTotal counts finished capture sequences by result ("ok",
	// "failed", "timeout").
	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photobox_captures_total",
		Help: "Finished capture sequences by result.",
	}, []string{"result"})

	// RejectionsTotal counts triggers rejected before a sequence started.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photobox_trigger_rejections_total",
		Help: "Capture triggers rejected by reason (busy, limit).",
	}, []string{"reason"})

	// QuotaRemaining tracks today's remaining shots.
	QuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "photobox_quota_remaining",
		Help: "Shots remaining in today's quota.",
	})

	// CaptureDuration observes how long the external capture took for
	// sequences that completed within the safety timeout.
	CaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "photobox_capture_duration_seconds",
		Help:    "External capture latency.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
