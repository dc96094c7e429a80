package app

import (
	"context"
	"fmt"
	"time"

	"drift-health-alerts/internal/service"
)

// Evaluate runs a single evaluation pass outside the scheduler, either
// for every business or for one specific business.
func (a *App) Evaluate(ctx context.Context, opts EvaluateOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; evaluating without persistence")
	}
	if closeStore != nil {
		defer closeStore()
	}

	agg := a.newAggregator()
	svc := service.New(a.Config, nil, agg, storesFor(store), a.newNotifier(), a.Logger)

	cycle := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)

	if opts.BusinessID == "" {
		return svc.ProcessCycle(ctx, cycle)
	}

	businesses, err := agg.ListBusinesses(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}
	for _, biz := range businesses {
		if biz.ID == opts.BusinessID {
			return svc.EvaluateBusiness(ctx, cycle, biz, opts.ForceNotify)
		}
	}
	return fmt.Errorf("business %q not found", opts.BusinessID)
}
