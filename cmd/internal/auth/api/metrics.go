package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateDeniedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "starter",
		Subsystem: "auth",
		Name:      "gate_denied_total",
		Help:      "Requests denied by the authentication gate, by contract code.",
	}, []string{"code"})

	tokenWrongClassTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "starter",
		Subsystem: "auth",
		Name:      "token_wrong_class_total",
		Help:      "Tokens presented with the wrong class, e.g. a refresh token on the access path.",
	})
)
