package dto

import (
	"encoding/json"
	"time"

	"github.com/spotsng/discovery-be/internal/catalog"
	"github.com/spotsng/discovery-be/internal/dedup"
)

type CandidateDTO struct {
	Name      string            `json:"name" binding:"required"`
	Address   string            `json:"address"`
	Latitude  *float64          `json:"latitude"`
	Longitude *float64          `json:"longitude"`
	Source    string            `json:"source"`
	Extra     map[string]string `json:"extra"`
}

type DiscoveryBatchRequest struct {
	Source      string         `json:"source"`
	PreApproved bool           `json:"pre_approved"`
	Enrich      *bool          `json:"enrich"`
	Candidates  []CandidateDTO `json:"candidates" binding:"required,min=1"`
}

// ToCandidates converts the request payload to discovery candidates,
// filling in the batch-level source where a candidate omits one.
func (r *DiscoveryBatchRequest) ToCandidates() []dedup.Candidate {
	candidates := make([]dedup.Candidate, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		source := c.Source
		if source == "" {
			source = r.Source
		}
		candidates = append(candidates, dedup.Candidate{
			Name:      c.Name,
			Address:   c.Address,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Source:    source,
			Extra:     c.Extra,
		})
	}
	return candidates
}

type ListLocationsRequest struct {
	Status string `form:"status"`
	Source string `form:"source"`
	Limit  int    `form:"limit"`
}

type EnrichRequest struct {
	Priority string `json:"priority"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type LocationDTO struct {
	LocationID      string            `json:"location_id"`
	Name            string            `json:"name"`
	Address         string            `json:"address"`
	Latitude        *float64          `json:"latitude,omitempty"`
	Longitude       *float64          `json:"longitude,omitempty"`
	Status          string            `json:"status"`
	DiscoverySource string            `json:"discovery_source"`
	ExternalRef     *string           `json:"external_ref,omitempty"`
	Rating          *float64          `json:"rating,omitempty"`
	RatingCount     *int              `json:"rating_count,omitempty"`
	Photos          []string          `json:"photos,omitempty"`
	Phone           *string           `json:"phone,omitempty"`
	Website         *string           `json:"website,omitempty"`
	Hours           map[string]string `json:"hours,omitempty"`
	LastEnrichedAt  *time.Time        `json:"last_enriched_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

type ListLocationsResponse struct {
	Locations []LocationDTO `json:"locations"`
	Count     int           `json:"count"`
}

// FromLocation maps a stored location to its API shape, decoding the
// JSON-encoded photo and hours columns. Undecodable columns are dropped
// rather than failing the read.
func FromLocation(loc *catalog.Location) LocationDTO {
	dto := LocationDTO{
		LocationID:      loc.LocationID,
		Name:            loc.Name,
		Address:         loc.Address,
		Latitude:        loc.Latitude,
		Longitude:       loc.Longitude,
		Status:          loc.Status,
		DiscoverySource: loc.DiscoverySource,
		ExternalRef:     loc.ExternalRef,
		Rating:          loc.Rating,
		RatingCount:     loc.RatingCount,
		Phone:           loc.Phone,
		Website:         loc.Website,
		LastEnrichedAt:  loc.LastEnrichedAt,
		CreatedAt:       loc.CreatedAt,
		UpdatedAt:       loc.UpdatedAt,
	}

	if loc.Photos != nil {
		var photos []string
		if err := json.Unmarshal([]byte(*loc.Photos), &photos); err == nil {
			dto.Photos = photos
		}
	}

	if loc.Hours != nil {
		var hours map[string]string
		if err := json.Unmarshal([]byte(*loc.Hours), &hours); err == nil {
			dto.Hours = hours
		}
	}

	return dto
}
