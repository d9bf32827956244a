package dialogue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_sequencer_events_total",
		Help: "Sequencer events by kind and outcome",
	}, []string{"event", "outcome"})

	metricSynthesis = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_synthesis_total",
		Help: "Speech synthesis requests by status",
	}, []string{"status"})

	metricSynthesisMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dialogue_synthesis_ms",
		Help:    "Wall-clock time of speech synthesis in milliseconds",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 12),
	})

	metricAudioBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_audio_bytes_sent_total",
		Help: "Encoded sample bytes sent to followers",
	})

	metricAudioRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_audio_rejected_total",
		Help: "Audio payloads that failed to decode",
	})

	metricAudioOversize = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialogue_audio_oversize_total",
		Help: "Audio lines kept local because their frame exceeds the relay limit",
	})

	metricSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_snapshots_applied_total",
		Help: "Snapshots applied by followers, split by whether the mirror changed",
	}, []string{"changed"})

	metricMessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialogue_messages_dropped_total",
		Help: "Inbound messages dropped by the dispatch table",
	}, []string{"kind", "reason"})
)
