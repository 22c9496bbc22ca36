// Package discovery turns raw candidate batches from discovery sources
// into catalog records: duplicates are skipped, survivors are persisted
// as pending and optionally handed to the enrichment queue.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/spotsng/discovery-be/internal/catalog"
	"github.com/spotsng/discovery-be/internal/dedup"
	"github.com/spotsng/discovery-be/internal/enrichment"
	"github.com/spotsng/discovery-be/internal/metrics"
	"github.com/spotsng/discovery-be/shared/clock"
)

// Catalog is the slice of the location store the orchestrator needs
type Catalog interface {
	Create(ctx context.Context, loc *catalog.Location) error
	ListSnapshot(ctx context.Context) ([]catalog.Snapshot, error)
}

// Enqueuer schedules enrichment for a newly saved location
type Enqueuer interface {
	Enqueue(locationID, address string, priority enrichment.Priority) error
}

// BatchOptions tunes a single ProcessBatch call
type BatchOptions struct {
	// Enrich schedules an enrichment job for every saved candidate.
	Enrich bool
	// PreApproved saves candidates as approved instead of pending and
	// bumps their enrichment priority to high.
	PreApproved bool
}

// BatchResult summarizes a discovery pass over one candidate batch
type BatchResult struct {
	Saved    int      `json:"saved"`
	SavedIDs []string `json:"saved_ids"`
	Skipped  []string `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Orchestrator runs candidate batches through dedup and persistence.
type Orchestrator struct {
	catalog  Catalog
	enqueuer Enqueuer
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewOrchestrator creates a discovery orchestrator. The enqueuer and
// metrics collaborators may be nil.
func NewOrchestrator(store Catalog, enqueuer Enqueuer, clk clock.Clock, logger *slog.Logger, collector *metrics.Collector) *Orchestrator {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		catalog:  store,
		enqueuer: enqueuer,
		clock:    clk,
		logger:   logger,
		metrics:  collector,
	}
}

// ProcessBatch checks every candidate against a snapshot of the current
// catalog and persists the ones that are not duplicates. Failures are
// per candidate: one bad record never aborts the rest of the batch. The
// snapshot is loaded once, so two near-identical candidates inside the
// same batch can both be saved; the next batch will catch the overlap.
func (o *Orchestrator) ProcessBatch(ctx context.Context, candidates []dedup.Candidate, opts BatchOptions) (*BatchResult, error) {
	snapshot, err := o.catalog.ListSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog snapshot: %w", err)
	}

	result := &BatchResult{
		SavedIDs: []string{},
		Skipped:  []string{},
	}

	for _, candidate := range candidates {
		if candidate.Name == "" {
			result.Errors = append(result.Errors, "candidate with empty name rejected")
			continue
		}

		if dedup.IsDuplicate(candidate, snapshot) {
			result.Skipped = append(result.Skipped, candidate.Name)
			if o.metrics != nil {
				o.metrics.RecordCandidateSkipped()
			}
			continue
		}

		loc, err := o.save(ctx, candidate, opts)
		if err != nil {
			o.logger.Error("Failed to save discovered candidate",
				slog.String("name", candidate.Name),
				slog.String("source", candidate.Source),
				slog.String("error", err.Error()),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", candidate.Name, err))
			continue
		}

		result.Saved++
		result.SavedIDs = append(result.SavedIDs, loc.LocationID)
		if o.metrics != nil {
			o.metrics.RecordCandidateSaved()
		}

		o.enqueueEnrichment(loc, opts)
	}

	o.logger.Info("Discovery batch processed",
		slog.Int("candidates", len(candidates)),
		slog.Int("saved", result.Saved),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("errors", len(result.Errors)),
	)

	return result, nil
}

func (o *Orchestrator) save(ctx context.Context, candidate dedup.Candidate, opts BatchOptions) (*catalog.Location, error) {
	now := o.clock.Now()

	status := catalog.StatusPending
	if opts.PreApproved {
		status = catalog.StatusApproved
	}

	source := candidate.Source
	if source == "" {
		source = "unknown"
	}

	loc := &catalog.Location{
		LocationID:      uuid.New().String(),
		Name:            candidate.Name,
		Address:         candidate.Address,
		Latitude:        candidate.Latitude,
		Longitude:       candidate.Longitude,
		Status:          status,
		DiscoverySource: source,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := o.catalog.Create(ctx, loc); err != nil {
		return nil, err
	}

	return loc, nil
}

func (o *Orchestrator) enqueueEnrichment(loc *catalog.Location, opts BatchOptions) {
	if !opts.Enrich || o.enqueuer == nil {
		return
	}

	priority := enrichment.PriorityMedium
	if loc.Status == catalog.StatusApproved {
		priority = enrichment.PriorityHigh
	}

	if err := o.enqueuer.Enqueue(loc.LocationID, loc.Address, priority); err != nil {
		// Enrichment is best effort at this point; the record is already
		// saved and can be enriched manually later.
		o.logger.Warn("Failed to enqueue enrichment for saved location",
			slog.String("location_id", loc.LocationID),
			slog.String("error", err.Error()),
		)
	}
}
