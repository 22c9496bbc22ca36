// Package handler implements the HTTP handlers for the discovery API.
package handler

import (
	"context"
	"log/slog"

	"github.com/spotsng/discovery-be/internal/cache"
	"github.com/spotsng/discovery-be/internal/catalog"
	"github.com/spotsng/discovery-be/internal/dedup"
	"github.com/spotsng/discovery-be/internal/discovery"
	"github.com/spotsng/discovery-be/internal/enrichment"
)

// LocationStore is the slice of the catalog the handlers read and write
type LocationStore interface {
	GetByID(ctx context.Context, locationID string) (*catalog.Location, error)
	List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Location, error)
	UpdateStatus(ctx context.Context, locationID, status string) error
}

// EnrichmentQueue exposes manual enqueue and the stats endpoint
type EnrichmentQueue interface {
	Enqueue(locationID, address string, priority enrichment.Priority) error
	Stats() enrichment.Stats
}

// Discoverer runs candidate batches through the discovery pipeline
type Discoverer interface {
	ProcessBatch(ctx context.Context, candidates []dedup.Candidate, opts discovery.BatchOptions) (*discovery.BatchResult, error)
}

// BatchPublisher hands a candidate batch to the message broker for
// asynchronous processing by a discovery worker
type BatchPublisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Store      LocationStore
	Cache      *cache.Cache[*catalog.Location]
	Queue      EnrichmentQueue
	Discoverer Discoverer
	Publisher  BatchPublisher
}

// LocationHandler handles location and discovery HTTP requests
type LocationHandler struct {
	logger     *slog.Logger
	store      LocationStore
	cache      *cache.Cache[*catalog.Location]
	queue      EnrichmentQueue
	discoverer Discoverer
	publisher  BatchPublisher
}

// NewLocationHandler creates a new LocationHandler instance
func NewLocationHandler(deps *Dependencies) *LocationHandler {
	return &LocationHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		cache:      deps.Cache,
		queue:      deps.Queue,
		discoverer: deps.Discoverer,
		publisher:  deps.Publisher,
	}
}
