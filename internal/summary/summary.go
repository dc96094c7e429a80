package summary

import (
	"strings"

	"github.com/shopspring/decimal"

	"drift-health-alerts/internal/engine"
)

// Confidence grades how much history backs the summary. High is part of
// the contract but no current rule produces it.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Driver is one formatted metric movement shown to the owner.
type Driver struct {
	Label    string `json:"label"`
	Current  string `json:"current"`
	Baseline string `json:"baseline"`
	Delta    string `json:"delta"`
}

// Impact carries the estimated monthly revenue effect in minor units,
// nil when either input was unavailable.
type Impact struct {
	EstMonthlyCents *int64 `json:"est_monthly"`
}

// Summary is the executive-facing rendering of one drift result. It is
// regenerated per notification and never persisted.
type Summary struct {
	Headline    string     `json:"headline"`
	Confidence  Confidence `json:"confidence"`
	Drivers     []Driver   `json:"drivers"`
	Impact      Impact     `json:"impact"`
	NextSteps   []string   `json:"nextSteps"`
	DetailsPath string     `json:"detailsPath"`
}

// Options parameterise summary generation.
type Options struct {
	MonthlyRevenueCents *int64
	DetailsPath         string
}

const fallbackHeadline = "Material change detected vs baseline."

var (
	stableSteps = []string{
		"No action needed; metrics are tracking baseline.",
	}
	refundSteps = []string{
		"Pull the refunded orders from the last two weeks and look for a shared product, batch, or shipping window.",
		"Contact the three most recent refund customers and ask what went wrong.",
		"Pause promotions on the affected items until the refund rate returns to baseline.",
	}
	driftSteps = []string{
		"Compare this period against the same weeks last year to rule out seasonality.",
		"Check for recent changes to pricing, hours, staffing, or top listings.",
		"Review recent customer feedback for a recurring complaint.",
	}
)

// Generate converts a drift result plus monthly-revenue context into the
// executive summary.
func Generate(res engine.Result, opts Options) Summary {
	return Summary{
		Headline:    headline(res),
		Confidence:  confidence(res),
		Drivers:     drivers(res),
		Impact:      impact(res, opts.MonthlyRevenueCents),
		NextSteps:   nextSteps(res),
		DetailsPath: opts.DetailsPath,
	}
}

func headline(res engine.Result) string {
	if res.Status.Normalize() == engine.StatusStable {
		return "No material risk signals detected."
	}
	if len(res.Reasons) == 0 {
		return fallbackHeadline
	}
	// First-detected reason carries the headline, in insertion order.
	first := res.Reasons[0]
	if first.Detail != "" {
		return first.Detail
	}
	if first.Code != "" {
		return first.Code
	}
	return fallbackHeadline
}

func confidence(res engine.Result) Confidence {
	for _, r := range res.Reasons {
		if r.Code == engine.CodeBaselineWarmup {
			return ConfidenceLow
		}
	}
	if m := res.Meta.Revenue; m != nil && (m.Revenue != nil || m.Refunds != nil) {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func drivers(res engine.Result) []Driver {
	m := res.Meta.Revenue
	if m == nil {
		return nil
	}

	var out []Driver
	if m.Refunds != nil {
		out = append(out, Driver{
			Label:    "Refund rate",
			Current:  FormatPct(m.Refunds.CurrentRefundRate),
			Baseline: FormatPct(m.Refunds.BaselineRefundRate),
			Delta:    FormatPctDelta(m.Refunds.Delta),
		})
	}
	if m.Revenue != nil {
		out = append(out, Driver{
			Label:    "Net revenue (14d)",
			Current:  FormatCents(m.Revenue.CurrentNetRevenueCents14d),
			Baseline: FormatCents(m.Revenue.BaselineNetRevenueCents14d),
			Delta:    FormatPctDelta(m.Revenue.DeltaPct),
		})
	}
	return out
}

// impact multiplies monthly revenue by the computed revenue delta. Both
// inputs must be present; a number is never fabricated from partial
// data.
func impact(res engine.Result, monthlyCents *int64) Impact {
	if monthlyCents == nil {
		return Impact{}
	}
	m := res.Meta.Revenue
	if m == nil || m.Revenue == nil {
		return Impact{}
	}

	est := decimal.NewFromInt(*monthlyCents).
		Mul(decimal.NewFromFloat(m.Revenue.DeltaPct)).
		Round(0).
		IntPart()
	return Impact{EstMonthlyCents: &est}
}

// nextSteps is a three-entry decision table keyed by a coarse
// classification, not per-code customisation.
func nextSteps(res engine.Result) []string {
	if res.Status.Normalize() == engine.StatusStable {
		return stableSteps
	}
	for _, r := range res.Reasons {
		if strings.Contains(r.Code, "REFUND") {
			return refundSteps
		}
	}
	return driftSteps
}
