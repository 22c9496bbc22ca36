// Package enrichment runs the asynchronous enrichment pipeline: a
// priority-ordered in-memory job queue with bounded batch concurrency,
// fixed-delay retries, and freshness-based skip logic.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spotsng/discovery-be/internal/catalog"
	"github.com/spotsng/discovery-be/internal/directory"
	"github.com/spotsng/discovery-be/internal/metrics"
	"github.com/spotsng/discovery-be/shared/clock"
)

// Store is the slice of the catalog the queue needs
type Store interface {
	GetByID(ctx context.Context, locationID string) (*catalog.Location, error)
	MergeEnrichment(ctx context.Context, locationID string, enr *catalog.Enrichment, enrichedAt time.Time) error
}

// CacheInvalidator drops a cached location after its record changes
type CacheInvalidator interface {
	Delete(key string)
}

// Config holds queue tunables
type Config struct {
	BatchSize       int           // max jobs processed concurrently per batch
	MaxAttempts     int           // processing attempts before a job is dropped
	RetryDelay      time.Duration // fixed delay before a failed job is due again
	BatchDelay      time.Duration // pause between batches while jobs remain
	FreshnessWindow time.Duration // successful enrichment age below which jobs are skipped
}

// Stats is a snapshot of queue state for the stats endpoint
type Stats struct {
	QueueLength    int              `json:"queue_length"`
	Processing     bool             `json:"processing"`
	CompletedToday int64            `json:"completed_today"`
	ByPriority     map[Priority]int `json:"by_priority"`
}

// Queue is the in-process enrichment job queue. Construct with NewQueue;
// the processing loop starts itself on the first Enqueue and exits when
// the queue drains.
type Queue struct {
	store     Store
	directory directory.Client
	cache     CacheInvalidator
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Collector
	cfg       Config

	mu         sync.Mutex
	high       []*Job
	medium     []*Job
	low        []*Job
	processing bool

	completedToday int64
	statsDay       string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a new enrichment queue. The cache and metrics
// collaborators may be nil.
func NewQueue(store Store, dir directory.Client, cache CacheInvalidator, clk clock.Clock, logger *slog.Logger, collector *metrics.Collector, cfg Config) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Minute
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = time.Second
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = 7 * 24 * time.Hour
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		store:     store,
		directory: dir,
		cache:     cache,
		clock:     clk,
		logger:    logger,
		metrics:   collector,
		cfg:       cfg,
		statsDay:  dayOf(clk.Now()),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enqueue adds an enrichment job for a location and wakes the processing
// loop if it is idle.
func (q *Queue) Enqueue(locationID, address string, priority Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("invalid priority: %q", priority)
	}

	now := q.clock.Now()
	job := &Job{
		LocationID:   locationID,
		Address:      address,
		Priority:     priority,
		MaxAttempts:  q.cfg.MaxAttempts,
		CreatedAt:    now,
		ScheduledFor: now,
	}

	q.mu.Lock()
	q.push(job)
	startLoop := !q.processing
	if startLoop {
		q.processing = true
	}
	q.updateDepthLocked()
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordEnqueue()
	}

	q.logger.Info("Enrichment job enqueued",
		slog.String("location_id", locationID),
		slog.String("priority", string(priority)),
	)

	if startLoop {
		q.wg.Add(1)
		go q.processingLoop()
	}

	return nil
}

// Stop terminates the processing loop and waits for in-flight jobs
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

// Stats returns queue length, the processing flag, completions since the
// last UTC day boundary, and the per-priority breakdown.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollCountersLocked(q.clock.Now())

	return Stats{
		QueueLength:    len(q.high) + len(q.medium) + len(q.low),
		Processing:     q.processing,
		CompletedToday: q.completedToday,
		ByPriority: map[Priority]int{
			PriorityHigh:   len(q.high),
			PriorityMedium: len(q.medium),
			PriorityLow:    len(q.low),
		},
	}
}

// push appends a job to the tail of its priority class. Callers must
// hold q.mu.
func (q *Queue) push(job *Job) {
	switch job.Priority {
	case PriorityHigh:
		q.high = append(q.high, job)
	case PriorityMedium:
		q.medium = append(q.medium, job)
	default:
		q.low = append(q.low, job)
	}
}

// requeue returns a job to the tail of its priority class
func (q *Queue) requeue(job *Job) {
	q.mu.Lock()
	q.push(job)
	q.updateDepthLocked()
	q.mu.Unlock()
}

// popBatch removes up to BatchSize jobs from the front of the ordered
// queue. When the queue is empty it clears the processing flag under the
// same lock, so a concurrent Enqueue either lands before the pop or
// observes an idle loop and starts a new one.
func (q *Queue) popBatch() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := make([]*Job, 0, q.cfg.BatchSize)

	for _, class := range []*[]*Job{&q.high, &q.medium, &q.low} {
		for len(batch) < q.cfg.BatchSize && len(*class) > 0 {
			batch = append(batch, (*class)[0])
			*class = (*class)[1:]
		}
	}

	if len(batch) == 0 {
		q.processing = false
	}

	q.updateDepthLocked()

	return batch
}

func (q *Queue) remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.medium) + len(q.low)
}

// processingLoop drains the queue in batches of up to BatchSize, pausing
// BatchDelay between batches, and exits once the queue is empty.
func (q *Queue) processingLoop() {
	defer q.wg.Done()

	for {
		if q.ctx.Err() != nil {
			q.mu.Lock()
			q.processing = false
			q.mu.Unlock()
			return
		}

		batch := q.popBatch()
		if len(batch) == 0 {
			return
		}

		q.processBatch(batch)

		if q.remaining() > 0 {
			select {
			case <-q.ctx.Done():
			case <-time.After(q.cfg.BatchDelay):
			}
		}
	}
}

// processBatch runs the batch jobs concurrently and waits for all of
// them. Job failures are isolated: a panic or error in one job never
// prevents its siblings from completing.
func (q *Queue) processBatch(batch []*Job) {
	var wg sync.WaitGroup

	for _, job := range batch {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					q.logger.Error("Enrichment job panicked",
						slog.String("location_id", job.LocationID),
						slog.Any("panic", r),
					)
					q.retryOrDrop(job, fmt.Errorf("panic: %v", r))
				}
			}()

			q.processJob(q.ctx, job)
		}(job)
	}

	wg.Wait()
}

// processJob runs one enrichment attempt through its state machine.
func (q *Queue) processJob(ctx context.Context, job *Job) {
	now := q.clock.Now()

	// Not yet due: back to the tail of its class.
	if now.Before(job.ScheduledFor) {
		q.requeue(job)
		return
	}

	loc, err := q.store.GetByID(ctx, job.LocationID)
	if err != nil {
		if errors.Is(err, catalog.ErrLocationNotFound) {
			q.drop(job, metrics.DropReasonRecordMissing, "location no longer exists")
			return
		}
		q.retryOrDrop(job, err)
		return
	}

	// Freshness check against the persisted timestamp: skip before any
	// lookup traffic is spent.
	if loc.LastEnrichedAt != nil && now.Sub(*loc.LastEnrichedAt) <= q.cfg.FreshnessWindow {
		q.drop(job, metrics.DropReasonFresh, "enriched within freshness window")
		return
	}

	address := job.Address
	if address == "" {
		address = loc.Address
	}

	query := loc.Name
	if address != "" {
		query += ", " + address
	}

	placeID, err := q.directory.ResolveIdentifier(ctx, query)
	if err != nil {
		q.handleLookupError(job, err)
		return
	}

	details, err := q.directory.FetchDetails(ctx, placeID)
	if err != nil {
		q.handleLookupError(job, err)
		return
	}

	enr := &catalog.Enrichment{
		ExternalRef: details.PlaceID,
		Rating:      details.Rating,
		RatingCount: details.RatingCount,
		Photos:      details.Photos,
		Phone:       details.Phone,
		Website:     details.Website,
		Hours:       details.Hours,
	}

	if err := q.store.MergeEnrichment(ctx, job.LocationID, enr, q.clock.Now()); err != nil {
		if errors.Is(err, catalog.ErrLocationNotFound) {
			q.drop(job, metrics.DropReasonRecordMissing, "location vanished during enrichment")
			return
		}
		q.retryOrDrop(job, err)
		return
	}

	if q.cache != nil {
		q.cache.Delete(catalog.CacheKey(job.LocationID))
	}

	q.mu.Lock()
	q.rollCountersLocked(q.clock.Now())
	q.completedToday++
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordCompleted()
	}

	q.logger.Info("Enrichment job completed",
		slog.String("location_id", job.LocationID),
		slog.String("external_ref", details.PlaceID),
	)
}

// handleLookupError sorts a directory error into the drop/retry policy:
// no-match is terminal, transient failures are retried, anything else is
// dropped permanently.
func (q *Queue) handleLookupError(job *Job, err error) {
	switch {
	case errors.Is(err, directory.ErrNoMatch):
		q.drop(job, metrics.DropReasonNoMatch, "no directory match")
	case directory.IsTransient(err):
		q.retryOrDrop(job, err)
	default:
		q.logger.Error("Enrichment lookup failed permanently",
			slog.String("location_id", job.LocationID),
			slog.String("error", err.Error()),
		)
		q.drop(job, metrics.DropReasonExhausted, "permanent lookup failure")
	}
}

// retryOrDrop increments the attempt count and either schedules the job
// for a delayed retry at the tail of its class or drops it once the
// attempt budget is spent.
func (q *Queue) retryOrDrop(job *Job, err error) {
	job.Attempts++

	if job.Attempts < job.MaxAttempts {
		job.ScheduledFor = q.clock.Now().Add(q.cfg.RetryDelay)
		q.requeue(job)

		if q.metrics != nil {
			q.metrics.RecordRetry()
		}

		q.logger.Warn("Enrichment job failed, will retry",
			slog.String("location_id", job.LocationID),
			slog.Int("attempts", job.Attempts),
			slog.Int("max_attempts", job.MaxAttempts),
			slog.String("error", err.Error()),
		)
		return
	}

	q.logger.Error("Enrichment job exhausted retries",
		slog.String("location_id", job.LocationID),
		slog.Int("attempts", job.Attempts),
		slog.String("error", err.Error()),
	)

	q.drop(job, metrics.DropReasonExhausted, "retries exhausted")
}

// drop records a job leaving the queue without completing
func (q *Queue) drop(job *Job, reason, detail string) {
	if q.metrics != nil {
		q.metrics.RecordDropped(reason)
	}

	q.logger.Info("Enrichment job dropped",
		slog.String("location_id", job.LocationID),
		slog.String("reason", reason),
		slog.String("detail", detail),
	)
}

// rollCountersLocked resets the daily completion counter when the UTC
// day changes. Callers must hold q.mu.
func (q *Queue) rollCountersLocked(now time.Time) {
	day := dayOf(now)
	if day != q.statsDay {
		q.completedToday = 0
		q.statsDay = day
	}
}

// updateDepthLocked pushes the current depth to the metrics gauge.
// Callers must hold q.mu.
func (q *Queue) updateDepthLocked() {
	if q.metrics != nil {
		q.metrics.SetQueueDepth(len(q.high) + len(q.medium) + len(q.low))
	}
}

func dayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
