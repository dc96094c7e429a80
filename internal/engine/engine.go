package engine

import (
	"errors"
	"fmt"
	"math"
)

// Status classifies how far a business has drifted from its baseline.
type Status string

const (
	StatusStable    Status = "stable"
	StatusWatch     Status = "watch"
	StatusSoftening Status = "softening"
	StatusAttention Status = "attention"
)

// Normalize maps the legacy-only watch state onto the three-state set
// that rendering consumers understand. All other values pass through.
func (s Status) Normalize() Status {
	if s == StatusWatch {
		return StatusSoftening
	}
	return s
}

// Direction describes the trend of the primary metric for the run.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionFlat Direction = "flat"
	DirectionDown Direction = "down"
)

// Engine identifiers carried in Meta.Engine.
const (
	EngineLegacyV1  = "legacy_v1"
	EngineRevenueV1 = "revenue_v1"
)

// Reason taxonomy codes. Stable keys; ordering inside a result is
// insertion order, first-detected first.
const (
	CodeReviewFreqDrop30 = "REV_FREQ_DROP_30"
	CodeReviewFreqDrop15 = "REV_FREQ_DROP_15"
	CodeSentimentDrop50  = "SENTIMENT_DROP_50"
	CodeSentimentDrop25  = "SENTIMENT_DROP_25"
	CodeEngagementDrop30 = "ENG_DROP_30"
	CodeEngagementDrop15 = "ENG_DROP_15"
	CodeRevenueDrop25    = "REV_VELOCITY_DROP_25"
	CodeRevenueDrop10    = "REV_VELOCITY_DROP_10"
	CodeRefundRateUp5    = "REFUND_RATE_UP_5"
	CodeRefundRateUp2    = "REFUND_RATE_UP_2"
	CodeBaselineWarmup   = "BASELINE_WARMUP"
)

// Reason records one triggered threshold. Delta is negative for declining
// revenue/engagement/sentiment style signals and positive for a worsening
// refund rate.
type Reason struct {
	Code   string  `json:"code"`
	Detail string  `json:"detail"`
	Delta  float64 `json:"delta"`
}

// LegacyMeta is the legacy_v1 payload of Meta.
type LegacyMeta struct {
	ReviewDrop        float64 `json:"reviewDrop"`
	EngagementDrop    float64 `json:"engagementDrop"`
	SentimentDelta    float64 `json:"sentimentDelta"`
	ReviewPenalty     int     `json:"reviewPenalty"`
	EngagementPenalty int     `json:"engagementPenalty"`
	SentimentPenalty  int     `json:"sentimentPenalty"`
}

// RevenueFigures carries the net-revenue comparison when both windows
// reported it.
type RevenueFigures struct {
	BaselineNetRevenueCents14d int64   `json:"baselineNetRevenueCents14d"`
	CurrentNetRevenueCents14d  int64   `json:"currentNetRevenueCents14d"`
	DeltaPct                   float64 `json:"deltaPct"`
}

// RefundFigures carries the refund-rate comparison when both windows
// reported it. The baseline rate may have been substituted by the warmup
// guard; Delta is current minus (possibly substituted) baseline.
type RefundFigures struct {
	BaselineRefundRate float64 `json:"baselineRefundRate"`
	CurrentRefundRate  float64 `json:"currentRefundRate"`
	Delta              float64 `json:"delta"`
}

// RevenueMeta is the revenue_v1 payload of Meta. Revenue or Refunds is
// nil when the source did not report that pair of fields.
type RevenueMeta struct {
	Revenue        *RevenueFigures `json:"revenue,omitempty"`
	Refunds        *RefundFigures  `json:"refunds,omitempty"`
	RevenuePenalty int             `json:"revenuePenalty"`
	RefundPenalty  int             `json:"refundPenalty"`
}

// Meta is a tagged union: Engine names the variant and exactly one of
// Legacy or Revenue is non-nil. Consumers switch on Engine instead of
// probing optional fields.
type Meta struct {
	Engine    string       `json:"engine"`
	Direction Direction    `json:"direction"`
	MRIScore  int          `json:"mriScore"`
	MRIRaw    int          `json:"mriRaw"`
	Legacy    *LegacyMeta  `json:"legacy,omitempty"`
	Revenue   *RevenueMeta `json:"revenue,omitempty"`
}

// Result is the complete, immutable engine output for one business for
// one run. Identical input yields an identical Result.
type Result struct {
	Status  Status   `json:"status"`
	Reasons []Reason `json:"reasons"`
	Meta    Meta     `json:"meta"`
}

// ReasonCodes returns the reason codes in insertion order.
func (r Result) ReasonCodes() []string {
	codes := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		codes = append(codes, reason.Code)
	}
	return codes
}

// SourceKind names the upstream data source connected to a business.
type SourceKind string

const (
	SourceReviews  SourceKind = "reviews"
	SourcePayments SourceKind = "payments"
)

// Snapshot is the aggregated window pair for one business. Engines read
// only their own subset of fields. Revenue and refund fields are
// pointers because absent is not the same as zero for money.
type Snapshot struct {
	BaselineReviews14d float64 `json:"baselineReviews14d"`
	CurrentReviews14d  float64 `json:"currentReviews14d"`
	BaselineSentiment  float64 `json:"baselineSentiment"`
	CurrentSentiment   float64 `json:"currentSentiment"`
	BaselineEngagement float64 `json:"baselineEngagement"`
	CurrentEngagement  float64 `json:"currentEngagement"`

	BaselineNetRevenueCents14d *int64   `json:"baselineNetRevenueCents14d,omitempty"`
	CurrentNetRevenueCents14d  *int64   `json:"currentNetRevenueCents14d,omitempty"`
	BaselineRefundRate         *float64 `json:"baselineRefundRate,omitempty"`
	CurrentRefundRate          *float64 `json:"currentRefundRate,omitempty"`
	BaselineGrossCents14d      int64    `json:"baselineGrossCents14d"`
}

var (
	// ErrInvalidInput marks a snapshot the engine refuses to score.
	ErrInvalidInput = errors.New("engine: invalid input")
	// ErrUnknownSource indicates no engine handles the source kind.
	ErrUnknownSource = errors.New("engine: unknown source kind")
)

// Engine scores one snapshot. Implementations are pure functions with no
// I/O and are safe for concurrent use across businesses.
type Engine interface {
	Name() string
	Evaluate(snap Snapshot) (Result, error)
}

// ForSource dispatches a business to its scoring engine.
func ForSource(kind SourceKind, cfg Config) (Engine, error) {
	switch kind {
	case SourceReviews:
		return NewLegacy(cfg), nil
	case SourcePayments:
		return NewRevenue(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
}

// unmeasurableBaseline is the sentinel pct change reported when the
// baseline is zero but the current value is not.
const unmeasurableBaseline = 999

// pctChange is the legacy-engine ratio policy: zero baseline and zero
// current means no change; zero baseline with activity means the change
// cannot be measured and the sentinel is returned.
func pctChange(current, baseline float64) float64 {
	if baseline != 0 {
		return (current - baseline) / baseline
	}
	if current == 0 {
		return 0
	}
	return unmeasurableBaseline
}

// pctDelta is the revenue-engine ratio policy for minor-unit amounts.
func pctDelta(current, baseline int64) float64 {
	if baseline <= 0 {
		if current > 0 {
			return 1
		}
		return 0
	}
	return float64(current-baseline) / float64(baseline)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func roundPenalty(v float64) int {
	return int(math.Round(v))
}

func validFraction(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 1
}

func validNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
