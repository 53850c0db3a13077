package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "starter",
		Subsystem: "auth",
		Name:      "sessions_evicted_total",
		Help:      "Sessions removed by the per-account cap at login.",
	})

	sweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "starter",
		Subsystem: "auth",
		Name:      "sessions_swept_total",
		Help:      "Expired sessions removed by the sweeper.",
	})
)
