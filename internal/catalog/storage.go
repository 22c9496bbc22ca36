package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrLocationNotFound is returned when a location does not exist in the catalog
var ErrLocationNotFound = errors.New("location not found")

// Storage handles all database operations for the location catalog
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new location into the catalog
func (s *Storage) Create(ctx context.Context, loc *Location) error {
	query := `
		INSERT INTO locations (
			location_id, name, address, latitude, longitude,
			status, discovery_source, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		loc.LocationID,
		loc.Name,
		loc.Address,
		loc.Latitude,
		loc.Longitude,
		loc.Status,
		loc.DiscoverySource,
		loc.CreatedAt,
		loc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}

	return nil
}

// GetByID retrieves a location by its ID
func (s *Storage) GetByID(ctx context.Context, locationID string) (*Location, error) {
	var loc Location
	query := `
		SELECT location_id, name, address, latitude, longitude,
		       status, discovery_source, external_ref, rating, rating_count,
		       photos, phone, website, hours, last_enriched_at,
		       created_at, updated_at
		FROM locations
		WHERE location_id = $1
	`

	err := s.db.GetContext(ctx, &loc, query, locationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	return &loc, nil
}

// ListSnapshot returns the id, name, and address of every non-rejected
// location. Used as the catalog snapshot for duplicate checks.
func (s *Storage) ListSnapshot(ctx context.Context) ([]Snapshot, error) {
	query := `
		SELECT location_id, name, address
		FROM locations
		WHERE status != $1
	`

	var snapshot []Snapshot
	if err := s.db.SelectContext(ctx, &snapshot, query, StatusRejected); err != nil {
		return nil, fmt.Errorf("failed to list catalog snapshot: %w", err)
	}

	return snapshot, nil
}

// ListFilter narrows List results
type ListFilter struct {
	Status          string
	DiscoverySource string
	Limit           int
}

// List returns locations matching the filter, newest first
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]Location, error) {
	query := `
		SELECT location_id, name, address, latitude, longitude,
		       status, discovery_source, external_ref, rating, rating_count,
		       photos, phone, website, hours, last_enriched_at,
		       created_at, updated_at
		FROM locations
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.DiscoverySource != "" {
		query += fmt.Sprintf(" AND discovery_source = $%d", argIdx)
		args = append(args, filter.DiscoverySource)
		argIdx++
	}

	query += " ORDER BY created_at DESC, location_id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	var locations []Location
	if err := s.db.SelectContext(ctx, &locations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	return locations, nil
}

// MergeEnrichment applies directory fields to a stored location and stamps
// the freshness timestamp. Nil enrichment fields keep their stored value.
func (s *Storage) MergeEnrichment(ctx context.Context, locationID string, enr *Enrichment, enrichedAt time.Time) error {
	var photosJSON, hoursJSON interface{}

	if enr.Photos != nil {
		data, err := json.Marshal(enr.Photos)
		if err != nil {
			return fmt.Errorf("failed to marshal photos: %w", err)
		}
		photosJSON = string(data)
	}

	if enr.Hours != nil {
		data, err := json.Marshal(enr.Hours)
		if err != nil {
			return fmt.Errorf("failed to marshal hours: %w", err)
		}
		hoursJSON = string(data)
	}

	query := `
		UPDATE locations
		SET external_ref = COALESCE(NULLIF($1, ''), external_ref),
		    rating = COALESCE($2, rating),
		    rating_count = COALESCE($3, rating_count),
		    photos = COALESCE($4, photos),
		    phone = COALESCE(NULLIF($5, ''), phone),
		    website = COALESCE(NULLIF($6, ''), website),
		    hours = COALESCE($7, hours),
		    last_enriched_at = $8,
		    updated_at = $8
		WHERE location_id = $9
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		enr.ExternalRef,
		enr.Rating,
		enr.RatingCount,
		photosJSON,
		enr.Phone,
		enr.Website,
		hoursJSON,
		enrichedAt,
		locationID,
	)
	if err != nil {
		return fmt.Errorf("failed to merge enrichment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrLocationNotFound
	}

	s.logger.Info("Enrichment merged",
		slog.String("location_id", locationID),
		slog.String("external_ref", enr.ExternalRef),
	)

	return nil
}

// UpdateStatus moves a location between moderation states
func (s *Storage) UpdateStatus(ctx context.Context, locationID, status string) error {
	query := `
		UPDATE locations
		SET status = $1,
		    updated_at = NOW()
		WHERE location_id = $2
	`

	result, err := s.db.ExecContext(ctx, query, status, locationID)
	if err != nil {
		return fmt.Errorf("failed to update location status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrLocationNotFound
	}

	return nil
}
