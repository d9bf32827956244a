package orch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_dialogue_messages_total",
		Help: "Dialogue messages relayed by kind and target",
	}, []string{"kind", "target"})

	metricRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_rejected_total",
		Help: "Frames refused by the relay",
	}, []string{"what", "reason"})

	metricSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_snapshots_total",
		Help: "Snapshot deliveries by path",
	}, []string{"path"})

	metricLeaderChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_leader_changes_total",
		Help: "Leader seat changes by cause",
	}, []string{"cause"})

	metricBackpressure = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_backpressure_total",
		Help: "Frames that could not be queued for a member",
	}, []string{"class"})

	metricMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_room_members",
		Help: "Members currently joined to a room",
	})
)
