package enrichment

import "time"

// Priority orders jobs in the queue. All high jobs are processed before
// all medium jobs, which precede all low jobs; within a class, insertion
// order is preserved.
type Priority string

// Priority classes
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority class
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Job is a pending enrichment of one catalog location. Jobs live only in
// process memory; a restart discards them.
type Job struct {
	LocationID   string    `json:"location_id"`
	Address      string    `json:"address"`
	Priority     Priority  `json:"priority"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	CreatedAt    time.Time `json:"created_at"`
	ScheduledFor time.Time `json:"scheduled_for"`
}
