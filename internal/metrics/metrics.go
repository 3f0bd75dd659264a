package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollscan"

var (
    modelAttempts = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "vision_attempts_total",
            Help:      "Vision model attempts by provider, model and result",
        },
        []string{"provider", "model", "result"},
    )

    modelLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "vision_attempt_duration_seconds",
            Help:      "Duration of vision model attempts by provider and model",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"provider", "model"},
    )

    pagesProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "pages_processed_total",
            Help:      "Pages processed by strategy and result (ok, empty, failed)",
        },
        []string{"strategy", "result"},
    )

    pageLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "page_duration_seconds",
            Help:      "Per-page extraction duration by strategy",
            Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
        },
        []string{"strategy"},
    )

    votersExtracted = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "voters_extracted_total",
            Help:      "Voter records produced by source (remote, local)",
        },
        []string{"source"},
    )

    jobTransitions = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "job_transitions_total",
            Help:      "Extraction job state transitions by target state",
        },
        []string{"state"},
    )

    batchLatency = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "batch_duration_seconds",
            Help:      "Duration of one local fallback batch",
            Buckets:   prometheus.DefBuckets,
        },
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: namespace,
            Name:      "queue_depth",
            Help:      "Queue depth gauges by stream",
        },
        []string{"type"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(modelAttempts, modelLatency, pagesProcessed, pageLatency, votersExtracted, jobTransitions, batchLatency, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveAttempt(provider, model, result string, dur time.Duration) {
    modelAttempts.WithLabelValues(provider, model, result).Inc()
    modelLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func ObservePage(strategy, result string, dur time.Duration) {
    pagesProcessed.WithLabelValues(strategy, result).Inc()
    pageLatency.WithLabelValues(strategy).Observe(dur.Seconds())
}

func AddVoters(source string, n int) { votersExtracted.WithLabelValues(source).Add(float64(n)) }
func IncJobState(state string)       { jobTransitions.WithLabelValues(state).Inc() }
func ObserveBatch(dur time.Duration) { batchLatency.Observe(dur.Seconds()) }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
