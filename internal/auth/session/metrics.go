package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reuseDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoshare",
		Subsystem: "session",
		Name:      "refresh_reuse_detected_total",
		Help:      "Rotated refresh secrets presented again; each revokes the user's sessions.",
	})

	sweptRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photoshare",
		Subsystem: "session",
		Name:      "swept_records_total",
		Help:      "Expired refresh records removed by the background sweep.",
	})
)
