package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoshare",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	renewalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photoshare",
		Subsystem: "auth",
		Name:      "renewals_total",
		Help:      "Refresh rotations by result.",
	}, []string{"result"})

	logoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoshare",
		Subsystem: "auth",
		Name:      "logouts_total",
		Help:      "Logout requests.",
	})
)
