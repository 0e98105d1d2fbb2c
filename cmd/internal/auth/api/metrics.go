package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toutlux",
		Subsystem: "auth",
		Name:      "sessions_issued_total",
		Help:      "Sessions issued, by entry point.",
	}, []string{"via"})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toutlux",
		Subsystem: "auth",
		Name:      "refresh_total",
		Help:      "Refresh attempts, by outcome.",
	}, []string{"result"})
)
