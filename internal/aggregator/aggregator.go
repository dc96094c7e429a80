package aggregator

import (
	"context"

	"drift-health-alerts/internal/engine"
)

// Business identifies one monitored business as the metrics API reports
// it. MonthlyRevenueCents is nil when the business has not connected a
// payment source or has no revenue history.
type Business struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Source              engine.SourceKind `json:"source"`
	MonthlyRevenueCents *int64            `json:"monthlyRevenueCents,omitempty"`
}

// Aggregator supplies the pre-aggregated metric windows the engines
// score. The aggregation itself (window math, normalisation to 14-day
// equivalents) lives in the upstream metrics service.
type Aggregator interface {
	ListBusinesses(ctx context.Context) ([]Business, error)
	FetchSnapshot(ctx context.Context, businessID string) (engine.Snapshot, error)
}
