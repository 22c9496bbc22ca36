// Package metrics exposes Prometheus counters for the ingestion and
// enrichment pipeline. Daily-reset counters for the stats endpoints live
// with their owning components; these collectors are cumulative.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the pipeline's Prometheus metrics
type Collector struct {
	jobsEnqueued  prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsRetried   prometheus.Counter
	jobsDropped   *prometheus.CounterVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	candidatesSaved   prometheus.Counter
	candidatesSkipped prometheus.Counter

	queueDepth prometheus.Gauge
}

// Drop reasons for the enrichment_jobs_dropped_total counter
const (
	DropReasonNoMatch       = "no_match"
	DropReasonRecordMissing = "record_missing"
	DropReasonFresh         = "fresh"
	DropReasonExhausted     = "exhausted"
)

// NewCollector creates and registers pipeline metrics on the given registerer
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrichment_jobs_enqueued_total",
			Help: "Total number of enrichment jobs enqueued",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrichment_jobs_completed_total",
			Help: "Total number of enrichment jobs completed successfully",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrichment_jobs_retried_total",
			Help: "Total number of enrichment job retry re-enqueues",
		}),
		jobsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrichment_jobs_dropped_total",
			Help: "Total number of enrichment jobs dropped, by reason",
		}, []string{"reason"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		}),
		candidatesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "discovery_candidates_saved_total",
			Help: "Total number of discovered candidates persisted",
		}),
		candidatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "discovery_candidates_skipped_total",
			Help: "Total number of discovered candidates skipped as duplicates",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enrichment_queue_depth",
			Help: "Current number of jobs in the enrichment queue",
		}),
	}

	reg.MustRegister(
		c.jobsEnqueued,
		c.jobsCompleted,
		c.jobsRetried,
		c.jobsDropped,
		c.cacheHits,
		c.cacheMisses,
		c.candidatesSaved,
		c.candidatesSkipped,
		c.queueDepth,
	)

	return c
}

// RecordEnqueue records an enrichment job entering the queue
func (c *Collector) RecordEnqueue() {
	c.jobsEnqueued.Inc()
}

// RecordCompleted records a successful enrichment
func (c *Collector) RecordCompleted() {
	c.jobsCompleted.Inc()
}

// RecordRetry records a retry re-enqueue after a transient failure
func (c *Collector) RecordRetry() {
	c.jobsRetried.Inc()
}

// RecordDropped records a job leaving the queue without completing
func (c *Collector) RecordDropped(reason string) {
	c.jobsDropped.WithLabelValues(reason).Inc()
}

// RecordCacheHit records a cache hit
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordCandidateSaved records a persisted discovery candidate
func (c *Collector) RecordCandidateSaved() {
	c.candidatesSaved.Inc()
}

// RecordCandidateSkipped records a candidate skipped as a duplicate
func (c *Collector) RecordCandidateSkipped() {
	c.candidatesSkipped.Inc()
}

// SetQueueDepth updates the queue depth gauge
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
