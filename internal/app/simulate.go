package app

import (
	"context"
	"errors"
	"time"

	"drift-health-alerts/internal/aggregator"
	"drift-health-alerts/internal/engine"
	"drift-health-alerts/internal/service"
)

// SimulateOptions feed a synthetic revenue snapshot into the pipeline.
type SimulateOptions struct {
	BaselineRevenueCents int64
	CurrentRevenueCents  int64
	BaselineRefundRate   float64
	CurrentRefundRate    float64
	MonthlyRevenueCents  int64
}

// SimulateDrift 通过给定的收入/退款数据模拟一次完整的告警流程。
func (a *App) SimulateDrift(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	baseRate := opts.BaselineRefundRate
	curRate := opts.CurrentRefundRate
	biz := aggregator.Business{
		ID:     "simulated",
		Name:   "Simulated Business",
		Source: engine.SourcePayments,
	}
	if opts.MonthlyRevenueCents > 0 {
		monthly := opts.MonthlyRevenueCents
		biz.MonthlyRevenueCents = &monthly
	}

	agg := &staticAggregator{
		business: biz,
		snapshot: engine.Snapshot{
			BaselineNetRevenueCents14d: &opts.BaselineRevenueCents,
			CurrentNetRevenueCents14d:  &opts.CurrentRevenueCents,
			BaselineRefundRate:         &baseRate,
			CurrentRefundRate:          &curRate,
			BaselineGrossCents14d:      opts.BaselineRevenueCents,
		},
	}

	svc := service.New(a.Config, nil, agg, service.Stores{}, notifier, a.Logger)

	cycle := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	return svc.EvaluateBusiness(ctx, cycle, biz, true)
}

type staticAggregator struct {
	business aggregator.Business
	snapshot engine.Snapshot
}

func (s *staticAggregator) ListBusinesses(ctx context.Context) ([]aggregator.Business, error) {
	return []aggregator.Business{s.business}, nil
}

func (s *staticAggregator) FetchSnapshot(ctx context.Context, businessID string) (engine.Snapshot, error) {
	return s.snapshot, nil
}

var _ aggregator.Aggregator = (*staticAggregator)(nil)
