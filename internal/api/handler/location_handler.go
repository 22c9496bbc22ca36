package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spotsng/discovery-be/internal/api/dto"
	"github.com/spotsng/discovery-be/internal/catalog"
	"github.com/spotsng/discovery-be/internal/discovery"
	"github.com/spotsng/discovery-be/internal/enrichment"
)

// ProcessDiscoveryBatch handles POST /api/v1/discovery/batch
// Runs a candidate batch through dedup and persistence. Per-candidate
// failures land in the response summary; the request itself only fails
// when the whole batch cannot be processed. With ?async=true the batch
// is published to the broker for a discovery worker instead.
func (h *LocationHandler) ProcessDiscoveryBatch(c *gin.Context) {
	var req dto.DiscoveryBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid discovery batch request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if c.Query("async") == "true" {
		h.publishBatch(c, &req)
		return
	}

	enrich := true
	if req.Enrich != nil {
		enrich = *req.Enrich
	}

	result, err := h.discoverer.ProcessBatch(c.Request.Context(), req.ToCandidates(), discovery.BatchOptions{
		Enrich:      enrich,
		PreApproved: req.PreApproved,
	})
	if err != nil {
		h.logger.Error("Failed to process discovery batch", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process discovery batch",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// publishBatch hands the batch to RabbitMQ for a discovery worker
func (h *LocationHandler) publishBatch(c *gin.Context, req *dto.DiscoveryBatchRequest) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Asynchronous processing is not available",
		})
		return
	}

	msg := discovery.BatchMessage{
		BatchID:     uuid.New().String(),
		Source:      req.Source,
		PreApproved: req.PreApproved,
		Candidates:  req.ToCandidates(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to encode batch message",
		})
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish discovery batch",
			slog.String("batch_id", msg.BatchID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to publish discovery batch",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"batch_id":   msg.BatchID,
		"candidates": len(msg.Candidates),
		"status":     "queued",
	})
}

// GetLocation handles GET /api/v1/locations/:location_id
// Serves the location from the cache when a fresh entry exists,
// otherwise reads the store and caches the result.
func (h *LocationHandler) GetLocation(c *gin.Context) {
	locationID := c.Param("location_id")

	if _, err := uuid.Parse(locationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "location_id must be a valid UUID",
		})
		return
	}

	key := catalog.CacheKey(locationID)

	if loc, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, dto.FromLocation(loc))
		return
	}

	loc, err := h.store.GetByID(c.Request.Context(), locationID)
	if err != nil {
		if errors.Is(err, catalog.ErrLocationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Location not found",
			})
			return
		}
		h.logger.Error("Failed to get location",
			slog.String("location_id", locationID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get location",
		})
		return
	}

	h.cache.Set(key, loc)

	c.JSON(http.StatusOK, dto.FromLocation(loc))
}

// ListLocations handles GET /api/v1/locations
// Lists catalog entries filtered by status, discovery source, and limit.
func (h *LocationHandler) ListLocations(c *gin.Context) {
	var req dto.ListLocationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Status != "" && !validStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "status must be one of PENDING, APPROVED, REJECTED",
		})
		return
	}

	locations, err := h.store.List(c.Request.Context(), catalog.ListFilter{
		Status:          req.Status,
		DiscoverySource: req.Source,
		Limit:           req.Limit,
	})
	if err != nil {
		h.logger.Error("Failed to list locations", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list locations",
		})
		return
	}

	resp := dto.ListLocationsResponse{
		Locations: make([]dto.LocationDTO, 0, len(locations)),
		Count:     len(locations),
	}
	for i := range locations {
		resp.Locations = append(resp.Locations, dto.FromLocation(&locations[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// EnrichLocation handles POST /api/v1/locations/:location_id/enrich
// Manually schedules an enrichment job. Priority defaults to high since
// a human asked for it.
func (h *LocationHandler) EnrichLocation(c *gin.Context) {
	locationID := c.Param("location_id")

	if _, err := uuid.Parse(locationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "location_id must be a valid UUID",
		})
		return
	}

	var req dto.EnrichRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	priority := enrichment.PriorityHigh
	if req.Priority != "" {
		priority = enrichment.Priority(req.Priority)
	}

	loc, err := h.store.GetByID(c.Request.Context(), locationID)
	if err != nil {
		if errors.Is(err, catalog.ErrLocationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Location not found",
			})
			return
		}
		h.logger.Error("Failed to get location for enrichment",
			slog.String("location_id", locationID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get location",
		})
		return
	}

	if err := h.queue.Enqueue(loc.LocationID, loc.Address, priority); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"location_id": loc.LocationID,
		"priority":    string(priority),
		"status":      "queued",
	})
}

// UpdateLocationStatus handles PATCH /api/v1/locations/:location_id/status
// Moves a location between moderation states and invalidates its cache
// entry.
func (h *LocationHandler) UpdateLocationStatus(c *gin.Context) {
	locationID := c.Param("location_id")

	if _, err := uuid.Parse(locationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "location_id must be a valid UUID",
		})
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if !validStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "status must be one of PENDING, APPROVED, REJECTED",
		})
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), locationID, req.Status); err != nil {
		if errors.Is(err, catalog.ErrLocationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Location not found",
			})
			return
		}
		h.logger.Error("Failed to update location status",
			slog.String("location_id", locationID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update location status",
		})
		return
	}

	h.cache.Delete(catalog.CacheKey(locationID))

	c.JSON(http.StatusOK, gin.H{
		"location_id": locationID,
		"status":      req.Status,
	})
}

// GetQueueStats handles GET /api/v1/queue/stats
func (h *LocationHandler) GetQueueStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Stats())
}

// GetCacheStats handles GET /api/v1/cache/stats
func (h *LocationHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// ClearCache handles DELETE /api/v1/cache
func (h *LocationHandler) ClearCache(c *gin.Context) {
	h.cache.Clear()
	h.logger.Info("Cache cleared via API")
	c.JSON(http.StatusOK, gin.H{
		"status": "cleared",
	})
}

func validStatus(status string) bool {
	switch status {
	case catalog.StatusPending, catalog.StatusApproved, catalog.StatusRejected:
		return true
	}
	return false
}
