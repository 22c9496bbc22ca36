package catalog

import "time"

// Location status constants
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Location is a point-of-interest stored in the catalog.
type Location struct {
	LocationID      string     `db:"location_id"`
	Name            string     `db:"name"`
	Address         string     `db:"address"`
	Latitude        *float64   `db:"latitude"`
	Longitude       *float64   `db:"longitude"`
	Status          string     `db:"status"`
	DiscoverySource string     `db:"discovery_source"`
	ExternalRef     *string    `db:"external_ref"`
	Rating          *float64   `db:"rating"`
	RatingCount     *int       `db:"rating_count"`
	Photos          *string    `db:"photos"` // JSON array of photo references
	Phone           *string    `db:"phone"`
	Website         *string    `db:"website"`
	Hours           *string    `db:"hours"` // JSON object, day -> opening hours
	LastEnrichedAt  *time.Time `db:"last_enriched_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Enrichment holds third-party directory fields to merge into a Location.
// Nil fields are left untouched on merge.
type Enrichment struct {
	ExternalRef string
	Rating      *float64
	RatingCount *int
	Photos      []string
	Phone       string
	Website     string
	Hours       map[string]string
}

// CacheKey is the cache key under which a location record is stored
func CacheKey(locationID string) string {
	return "location:" + locationID
}

// Snapshot is the minimal view of a catalog entry used for duplicate
// checks during a discovery pass.
type Snapshot struct {
	LocationID string `db:"location_id"`
	Name       string `db:"name"`
	Address    string `db:"address"`
}
