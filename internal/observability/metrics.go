package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	idempotencyCounter    *prometheus.CounterVec
	voteCounter           *prometheus.CounterVec
	transitionCounter     *prometheus.CounterVec
	overrideCounter       *prometheus.CounterVec
	openProposalsGauge    prometheus.Gauge
	eventPublishCounter   *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		voteCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_votes_total",
			Help: "Vote submissions by class and outcome",
		}, []string{"class", "outcome"})

		transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_proposal_transitions_total",
			Help: "Proposal audit actions committed",
		}, []string{"action"})

		overrideCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_overrides_total",
			Help: "Proposals forced to a terminal status by override",
		}, []string{"status"})

		openProposalsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "governance_open_proposals",
			Help: "Proposals held in memory by the evaluator",
		})

		eventPublishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_events_published_total",
			Help: "Outbound proposal events by status and result",
		}, []string{"status", "result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			idempotencyCounter,
			voteCounter,
			transitionCounter,
			overrideCounter,
			openProposalsGauge,
			eventPublishCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementVote(class, outcome string) {
	if voteCounter == nil {
		return
	}
	voteCounter.WithLabelValues(class, outcome).Inc()
}

func IncrementTransition(action string) {
	if transitionCounter == nil {
		return
	}
	transitionCounter.WithLabelValues(action).Inc()
}

func IncrementOverride(status string) {
	if overrideCounter == nil {
		return
	}
	overrideCounter.WithLabelValues(status).Inc()
}

func SetOpenProposals(n int) {
	if openProposalsGauge == nil {
		return
	}
	openProposalsGauge.Set(float64(n))
}

func IncrementEventPublish(status, result string) {
	if eventPublishCounter == nil {
		return
	}
	eventPublishCounter.WithLabelValues(status, result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
