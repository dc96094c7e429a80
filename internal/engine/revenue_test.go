package engine

import (
	"errors"
	"testing"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func revenueSnapshot(baseline, current int64) Snapshot {
	return Snapshot{
		BaselineNetRevenueCents14d: i64(baseline),
		CurrentNetRevenueCents14d:  i64(current),
		BaselineRefundRate:         f64(0.02),
		CurrentRefundRate:          f64(0.02),
		BaselineGrossCents14d:      baseline,
	}
}

func TestRevenueVelocityDropAttention(t *testing.T) {
	eng := NewRevenue(Config{})
	res, err := eng.Evaluate(revenueSnapshot(100_000, 70_000))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if res.Status != StatusAttention {
		t.Fatalf("expected attention, got %s", res.Status)
	}
	if len(res.Reasons) != 1 || res.Reasons[0].Code != CodeRevenueDrop25 {
		t.Fatalf("期望仅 REV_VELOCITY_DROP_25, 实际 %v", res.ReasonCodes())
	}
	if res.Meta.Direction != DirectionDown {
		t.Fatalf("expected direction down, got %s", res.Meta.Direction)
	}
	if got := res.Meta.Revenue.Revenue.DeltaPct; got != -0.30 {
		t.Fatalf("expected deltaPct -0.30, got %v", got)
	}
	// revenue penalty: clamp(0.30/0.35)*70 rounds to 60
	if res.Meta.MRIScore != 40 {
		t.Fatalf("expected mri 40, got %d", res.Meta.MRIScore)
	}
}

func TestRevenueAttentionBoundaryClosed(t *testing.T) {
	eng := NewRevenue(Config{})

	res, err := eng.Evaluate(revenueSnapshot(100_000, 75_000))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Status != StatusAttention {
		t.Fatalf("deltaPct -0.25 恰好命中下界, 应为 attention, 实际 %s", res.Status)
	}

	res, err = eng.Evaluate(revenueSnapshot(1_000_000, 750_001))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Status != StatusSoftening {
		t.Fatalf("deltaPct -0.249999 应为 softening, 实际 %s", res.Status)
	}
	if res.Reasons[0].Code != CodeRevenueDrop10 {
		t.Fatalf("higher tier must suppress lower: %v", res.ReasonCodes())
	}
}

func TestRevenueRefundSpikeAttention(t *testing.T) {
	eng := NewRevenue(Config{})
	snap := Snapshot{
		BaselineNetRevenueCents14d: i64(200_000),
		CurrentNetRevenueCents14d:  i64(200_000),
		BaselineRefundRate:         f64(0.03),
		CurrentRefundRate:          f64(0.09),
		BaselineGrossCents14d:      200_000,
	}

	res, err := eng.Evaluate(snap)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if res.Status != StatusAttention {
		t.Fatalf("单一退款率信号也足以 attention, 实际 %s", res.Status)
	}
	if len(res.Reasons) != 1 || res.Reasons[0].Code != CodeRefundRateUp5 {
		t.Fatalf("unexpected reasons: %v", res.ReasonCodes())
	}
	if delta := res.Meta.Revenue.Refunds.Delta; delta < 0.0599 || delta > 0.0601 {
		t.Fatalf("expected refund delta ~0.06, got %v", delta)
	}
	if res.Meta.Direction != DirectionFlat {
		t.Fatalf("flat revenue should read flat, got %s", res.Meta.Direction)
	}
}

func TestRevenueStableHasNoReasons(t *testing.T) {
	eng := NewRevenue(Config{})
	res, err := eng.Evaluate(revenueSnapshot(100_000, 98_000))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if res.Status != StatusStable {
		t.Fatalf("expected stable, got %s", res.Status)
	}
	if len(res.Reasons) != 0 {
		t.Fatalf("stable 状态不应有 reasons: %v", res.ReasonCodes())
	}
	// 2% dip still costs a small penalty: clamp(0.02/0.35)*70 rounds to 4.
	if res.Meta.MRIScore != 96 {
		t.Fatalf("expected mri 96, got %d", res.Meta.MRIScore)
	}
}

func TestRevenueZeroBaselinePolicy(t *testing.T) {
	eng := NewRevenue(Config{})

	res, err := eng.Evaluate(Snapshot{
		BaselineNetRevenueCents14d: i64(0),
		CurrentNetRevenueCents14d:  i64(50_000),
		BaselineRefundRate:         f64(0),
		CurrentRefundRate:          f64(0),
		BaselineGrossCents14d:      50_000,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := res.Meta.Revenue.Revenue.DeltaPct; got != 1 {
		t.Fatalf("zero baseline with revenue should report +1, got %v", got)
	}
	if res.Meta.Direction != DirectionUp {
		t.Fatalf("expected direction up, got %s", res.Meta.Direction)
	}

	res, err = eng.Evaluate(Snapshot{
		BaselineNetRevenueCents14d: i64(0),
		CurrentNetRevenueCents14d:  i64(0),
		BaselineRefundRate:         f64(0),
		CurrentRefundRate:          f64(0),
		BaselineGrossCents14d:      50_000,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got := res.Meta.Revenue.Revenue.DeltaPct; got != 0 {
		t.Fatalf("zero baseline and zero current should report 0, got %v", got)
	}
}

func TestRevenueWarmupGuardSuppressesRefundSpike(t *testing.T) {
	eng := NewRevenue(Config{})
	snap := Snapshot{
		BaselineNetRevenueCents14d: i64(2_000),
		CurrentNetRevenueCents14d:  i64(9_000),
		BaselineRefundRate:         f64(0),
		CurrentRefundRate:          f64(0.12),
		BaselineGrossCents14d:      2_000,
	}

	res, err := eng.Evaluate(snap)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	codes := res.ReasonCodes()
	if len(codes) != 1 || codes[0] != CodeBaselineWarmup {
		t.Fatalf("warmup 下不应出现退款告警: %v", codes)
	}
	if res.Status != StatusStable {
		t.Fatalf("expected stable during warmup, got %s", res.Status)
	}
	if res.Meta.Revenue.Refunds.Delta != 0 {
		t.Fatalf("substituted baseline must collapse delta to zero, got %v", res.Meta.Revenue.Refunds.Delta)
	}
	if res.Meta.Revenue.Refunds.BaselineRefundRate != 0.12 {
		t.Fatalf("baseline rate should be substituted with current, got %v", res.Meta.Revenue.Refunds.BaselineRefundRate)
	}
}

func TestRevenueMissingFieldsAreNotZero(t *testing.T) {
	eng := NewRevenue(Config{})

	if _, err := eng.Evaluate(Snapshot{BaselineGrossCents14d: 100_000}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("两组字段都缺失应返回 ErrInvalidInput, 实际 %v", err)
	}

	// Refunds only: the revenue signal is unavailable, not zero.
	res, err := eng.Evaluate(Snapshot{
		BaselineRefundRate:    f64(0.01),
		CurrentRefundRate:     f64(0.04),
		BaselineGrossCents14d: 100_000,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Meta.Revenue.Revenue != nil {
		t.Fatalf("missing revenue pair must not fabricate figures")
	}
	if res.Status != StatusSoftening {
		t.Fatalf("refund delta 0.03 should soften, got %s", res.Status)
	}
	if res.Meta.Direction != DirectionFlat {
		t.Fatalf("no revenue signal means flat direction, got %s", res.Meta.Direction)
	}
}

func TestRevenueScoreClamped(t *testing.T) {
	eng := NewRevenue(Config{})
	snap := Snapshot{
		BaselineNetRevenueCents14d: i64(500_000),
		CurrentNetRevenueCents14d:  i64(0),
		BaselineRefundRate:         f64(0),
		CurrentRefundRate:          f64(0.5),
		BaselineGrossCents14d:      500_000,
	}

	res, err := eng.Evaluate(snap)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if res.Meta.MRIScore != 0 {
		t.Fatalf("expected mri clamped to 0, got %d", res.Meta.MRIScore)
	}
	if res.Meta.MRIRaw != 0 {
		t.Fatalf("expected raw 0, got %d", res.Meta.MRIRaw)
	}
	if res.Status != StatusAttention {
		t.Fatalf("expected attention, got %s", res.Status)
	}
}
