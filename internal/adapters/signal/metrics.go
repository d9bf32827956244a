package signal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_connections",
		Help: "Open websocket signal connections",
	})

	metricRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_rate_limited_total",
		Help: "Member requests refused by the rate limiter",
	}, []string{"kind"})
)
