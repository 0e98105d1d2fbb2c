package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toutlux",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method and status class.",
	}, []string{"method", "class"})

	sessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "toutlux",
		Subsystem: "auth",
		Name:      "sessions_swept_total",
		Help:      "Expired session records removed by the sweeper.",
	})
)
