package engine

import "fmt"

// Penalty spans map a signal magnitude onto its full penalty weight: a
// 35% revenue drop or an 8 point refund-rate rise exhausts the
// respective component.
const (
	revenuePenaltySpan = 0.35
	refundPenaltySpan  = 0.08
)

// Revenue scores payment-connected businesses on net revenue velocity
// and refund rate. Unlike the legacy engine, a single strong signal is
// enough for attention: revenue and refund-rate are each independently
// decision-worthy.
type Revenue struct {
	cfg Config
}

// NewRevenue constructs the revenue_v1 engine.
func NewRevenue(cfg Config) *Revenue {
	return &Revenue{cfg: cfg.normalized()}
}

// Name returns the engine identifier.
func (e *Revenue) Name() string { return EngineRevenueV1 }

// Evaluate scores one snapshot.
func (e *Revenue) Evaluate(snap Snapshot) (Result, error) {
	hasRevenue := snap.BaselineNetRevenueCents14d != nil && snap.CurrentNetRevenueCents14d != nil
	hasRefunds := snap.BaselineRefundRate != nil && snap.CurrentRefundRate != nil
	if !hasRevenue && !hasRefunds {
		return Result{}, fmt.Errorf("%w: neither net revenue nor refund rate reported", ErrInvalidInput)
	}
	if hasRefunds && (!validNumber(*snap.BaselineRefundRate) || !validNumber(*snap.CurrentRefundRate)) {
		return Result{}, fmt.Errorf("%w: refund rates must be finite", ErrInvalidInput)
	}

	var reasons []Reason

	// Warmup guard: with materially empty baseline history a refund-rate
	// comparison would report a spike that is pure lack of data. The
	// current rate stands in for the baseline, which collapses the delta
	// to zero.
	warmup := snap.BaselineGrossCents14d < e.cfg.WarmupMinGrossCents
	if warmup {
		reasons = append(reasons, Reason{
			Code:   CodeBaselineWarmup,
			Detail: "Baseline history is still warming up; comparisons are low confidence.",
		})
	}

	meta := &RevenueMeta{}
	deltaPct := 0.0
	if hasRevenue {
		deltaPct = pctDelta(*snap.CurrentNetRevenueCents14d, *snap.BaselineNetRevenueCents14d)
		meta.Revenue = &RevenueFigures{
			BaselineNetRevenueCents14d: *snap.BaselineNetRevenueCents14d,
			CurrentNetRevenueCents14d:  *snap.CurrentNetRevenueCents14d,
			DeltaPct:                   deltaPct,
		}
	}

	refundDelta := 0.0
	if hasRefunds {
		baseRate := clamp01(*snap.BaselineRefundRate)
		curRate := clamp01(*snap.CurrentRefundRate)
		if warmup {
			baseRate = curRate
		}
		refundDelta = curRate - baseRate
		meta.Refunds = &RefundFigures{
			BaselineRefundRate: baseRate,
			CurrentRefundRate:  curRate,
			Delta:              refundDelta,
		}
	}

	if hasRevenue {
		if deltaPct <= -e.cfg.RevenueDropHigh {
			reasons = append(reasons, Reason{
				Code:   CodeRevenueDrop25,
				Detail: fmt.Sprintf("Net revenue is down %.0f%% versus the baseline window.", -deltaPct*100),
				Delta:  deltaPct,
			})
		} else if deltaPct <= -e.cfg.RevenueDropLow {
			reasons = append(reasons, Reason{
				Code:   CodeRevenueDrop10,
				Detail: fmt.Sprintf("Net revenue is down %.0f%% versus the baseline window.", -deltaPct*100),
				Delta:  deltaPct,
			})
		}
	}

	if hasRefunds {
		if refundDelta >= e.cfg.RefundRiseHigh {
			reasons = append(reasons, Reason{
				Code:   CodeRefundRateUp5,
				Detail: fmt.Sprintf("Refund rate rose %.1f points versus baseline.", refundDelta*100),
				Delta:  refundDelta,
			})
		} else if refundDelta >= e.cfg.RefundRiseLow {
			reasons = append(reasons, Reason{
				Code:   CodeRefundRateUp2,
				Detail: fmt.Sprintf("Refund rate rose %.1f points versus baseline.", refundDelta*100),
				Delta:  refundDelta,
			})
		}
	}

	status := StatusStable
	switch {
	case (hasRevenue && deltaPct <= -e.cfg.RevenueDropHigh) || (hasRefunds && refundDelta >= e.cfg.RefundRiseHigh):
		status = StatusAttention
	case (hasRevenue && deltaPct <= -e.cfg.RevenueDropLow) || (hasRefunds && refundDelta >= e.cfg.RefundRiseLow):
		status = StatusSoftening
	}

	revenuePenalty := 0
	if hasRevenue && deltaPct < 0 {
		revenuePenalty = roundPenalty(clamp01(-deltaPct/revenuePenaltySpan) * 70)
	}
	refundPenalty := 0
	if hasRefunds && refundDelta > 0 {
		refundPenalty = roundPenalty(clamp01(refundDelta/refundPenaltySpan) * 30)
	}
	meta.RevenuePenalty = revenuePenalty
	meta.RefundPenalty = refundPenalty
	raw := 100 - (revenuePenalty + refundPenalty)

	direction := DirectionFlat
	if hasRevenue {
		switch {
		case deltaPct > e.cfg.DirectionBand:
			direction = DirectionUp
		case deltaPct < -e.cfg.DirectionBand:
			direction = DirectionDown
		}
	}

	return Result{
		Status:  status,
		Reasons: reasons,
		Meta: Meta{
			Engine:    EngineRevenueV1,
			Direction: direction,
			MRIScore:  clampScore(raw),
			MRIRaw:    raw,
			Revenue:   meta,
		},
	}, nil
}

var _ Engine = (*Revenue)(nil)
