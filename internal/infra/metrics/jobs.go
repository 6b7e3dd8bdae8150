package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsProcessedTotal,
		jobStageSeconds,
		chunksPlannedTotal,
		transcriptTokens,
		deliveriesTotal,
	)
}

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Jobs that left the pipeline, labeled by final status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	jobStageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_stage_duration_seconds",
			Help:    "Time spent per pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(1, 3, 9),
		},
		[]string{"stage"},
	)

	chunksPlannedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunks_planned_total",
			Help: "Audio chunks produced by the planner.",
		},
		[]string{"kind"}, // whole | segment | reencoded
	)

	transcriptTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcript_tokens",
			Help:    "Estimated token size of full transcripts sent for note synthesis.",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 10),
		},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "note_deliveries_total",
			Help: "Note deliveries per target.",
		},
		[]string{"target", "success"},
	)
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

// ObserveStage folds transcribing_chunk_N into a single label.
func ObserveStage(stage string, d time.Duration) {
	if len(stage) > len("transcribing_chunk_") && stage[:len("transcribing_chunk_")] == "transcribing_chunk_" {
		stage = "transcribing"
	}
	jobStageSeconds.WithLabelValues(norm(stage)).Observe(d.Seconds())
}

func IncChunksPlanned(kind string, n int) {
	chunksPlannedTotal.WithLabelValues(norm(kind)).Add(float64(n))
}

func ObserveTranscriptTokens(n int) {
	transcriptTokens.Observe(float64(n))
}

func IncDelivery(target string, ok bool) {
	deliveriesTotal.WithLabelValues(norm(target), strconv.FormatBool(ok)).Inc()
}
