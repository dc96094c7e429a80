package storage

import (
	"encoding/json"
	"time"
)

// StateRecord is the last persisted change-detector state for one
// business. Exactly one row per business; the service rewrites it under
// the per-business advisory lock.
type StateRecord struct {
	BusinessID  string
	Status      string
	ReasonCodes []string
	UpdatedAt   time.Time
}

// AlertRecord audits one emitted alert. Inserted only when the
// change-detector reported a material change.
type AlertRecord struct {
	ID          int64
	BusinessID  string
	Status      string
	ReasonCodes []string
	WindowStart time.Time
	WindowEnd   time.Time
	MRIScore    int
	Meta        json.RawMessage
	CreatedAt   time.Time
}

// RunRecord is one scored evaluation, retained for MRI history export.
type RunRecord struct {
	BusinessID string
	Cycle      time.Time
	EngineName string
	Status     string
	MRIScore   int
	DeltaPct   *float64
	CreatedAt  time.Time
}
