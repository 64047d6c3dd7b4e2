// Package metrics exposes Prometheus metrics for the capture pipeline
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Frame pipeline
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ears_frames_processed_total",
		Help: "Total PCM frames routed through the listener",
	})
	ChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ears_capture_chunks_dropped_total",
		Help: "Capture chunks dropped because the pipeline fell behind",
	})

	// Wake / barge-in
	WakeEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ears_wake_events_total",
		Help: "Detected wake words",
	})
	BargeInEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ears_barge_in_events_total",
		Help: "Detected interruptions while the assistant was speaking",
	})

	// Utterances
	UtterancesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ears_utterances_emitted_total",
		Help: "Utterances encoded and handed to transcription",
	})
	UtterancesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ears_utterances_discarded_total",
		Help: "Utterances dropped before emission",
	}, []string{"reason"}) // "too_short", "blocked", "encode"
	UtteranceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ears_utterance_duration_seconds",
		Help:    "Duration of emitted utterances",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
	})

	// Feedback guard
	GuardBlocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ears_guard_blocked",
		Help: "1 while playback holds the feedback guard",
	})

	// Capture supervision
	CaptureRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ears_capture_restarts_total",
		Help: "Times the audio source was restarted by the supervisor",
	})

	// Transcription hand-off
	TranscriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ears_transcription_requests_total",
		Help: "Transcription requests by outcome",
	}, []string{"status"}) // "ok", "error"
	TranscriptionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ears_transcription_duration_seconds",
		Help:    "Latency of transcription requests",
		Buckets: prometheus.DefBuckets,
	})

	// Push-to-talk sessions
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ears_ptt_sessions_started_total",
		Help: "Push-to-talk sessions started",
	})
	SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ears_ptt_sessions_rejected_total",
		Help: "Push-to-talk starts refused",
	}, []string{"reason"}) // "blocked", "active"
)
