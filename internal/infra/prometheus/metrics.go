package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkgate"

var (
	// Redirects counts GET /:slug outcomes.
	Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redirects_total",
		Help:      "Redirect resolutions by outcome.",
	}, []string{"outcome"})

	// RateLimitRejections counts requests refused by admission control.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})

	// ClicksRecorded counts clicks committed together with their counter increment.
	ClicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clicks_recorded_total",
		Help:      "Clicks stored with their link counter incremented.",
	})

	// ClicksLost counts clicks that were never stored, by the stage that gave up.
	ClicksLost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clicks_lost_total",
		Help:      "Clicks dropped by click accounting.",
	}, []string{"stage"})
)
