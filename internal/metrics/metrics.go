package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mini-app dispatch metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicednut_webapp_dispatch_total",
			Help: "Mini app messages processed, by outcome",
		},
		[]string{"outcome", "kind", "action"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voicednut_webapp_dispatch_duration_seconds",
			Help:    "Time spent dispatching a mini app message, including the reply",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	// Telegram transport
	UpdatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicednut_telegram_updates_total",
			Help: "Telegram updates received, by type",
		},
		[]string{"type"},
	)

	ReplyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voicednut_telegram_reply_errors_total",
			Help: "Replies that failed to send",
		},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicednut_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
