package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"drift-health-alerts/internal/aggregator"
	"drift-health-alerts/internal/alerting"
	"drift-health-alerts/internal/config"
	"drift-health-alerts/internal/engine"
	"drift-health-alerts/internal/scheduler"
	"drift-health-alerts/internal/storage"
	"drift-health-alerts/internal/summary"
)

// Service orchestrates fetching, scoring, change detection, persistence,
// and alerting for a batch of businesses.
type Service struct {
	scheduler  *scheduler.Scheduler
	aggregator aggregator.Aggregator
	stateStore storage.StateStore
	alertStore storage.AlertStore
	runStore   storage.RunStore
	locker     storage.AdvisoryLocker
	notifier   alerting.Notifier
	logger     zerolog.Logger

	engineCfg   engine.Config
	window      time.Duration
	channels    []string
	alertsOn    bool
	detailsBase string
}

// Stores bundles the persistence seams the service writes through. Any
// of them may be nil, in which case that concern is skipped.
type Stores struct {
	State  storage.StateStore
	Alerts storage.AlertStore
	Runs   storage.RunStore
	Locker storage.AdvisoryLocker
}

// New constructs the drift monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, agg aggregator.Aggregator, stores Stores, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:   sched,
		aggregator:  agg,
		stateStore:  stores.State,
		alertStore:  stores.Alerts,
		runStore:    stores.Runs,
		locker:      stores.Locker,
		notifier:    notifier,
		logger:      logger.With().Str("component", "service").Logger(),
		engineCfg:   cfg.Engine,
		window:      cfg.Aggregator.CurrentWindow,
		channels:    cfg.Alerting.Channels,
		alertsOn:    cfg.Alerting.Enabled,
		detailsBase: cfg.Alerting.DetailsBasePath,
	}
}

// Run begins the aligned evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle evaluates every monitored business once. A failure in one
// business is logged and isolated; the rest of the batch still runs.
func (s *Service) ProcessCycle(ctx context.Context, cycle time.Time) error {
	businesses, err := s.aggregator.ListBusinesses(ctx)
	if err != nil {
		return fmt.Errorf("list businesses: %w", err)
	}

	var failures int
	for _, biz := range businesses {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.EvaluateBusiness(ctx, cycle, biz, false); err != nil {
			failures++
			s.logger.Error().Err(err).
				Str("business_id", biz.ID).
				Time("cycle", cycle).
				Msg("business evaluation failed; continuing batch")
		}
	}

	s.logger.Info().Time("cycle", cycle).
		Int("businesses", len(businesses)).
		Int("failures", failures).
		Msg("evaluation cycle complete")
	return nil
}

// EvaluateBusiness runs the full pipeline for one business: snapshot →
// engine → change detection → persistence → notification. The advisory
// lock keeps the read-compare-write on drift state single-writer per
// business. forceNotify bypasses change detection without altering the
// persisted state semantics.
func (s *Service) EvaluateBusiness(ctx context.Context, cycle time.Time, biz aggregator.Business, forceNotify bool) error {
	unlock, proceed, err := s.acquireLock(ctx, biz.ID)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Str("business_id", biz.ID).Msg("skip business because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	snap, err := s.aggregator.FetchSnapshot(ctx, biz.ID)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	eng, err := engine.ForSource(biz.Source, s.engineCfg)
	if err != nil {
		return err
	}

	result, err := eng.Evaluate(snap)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", eng.Name(), err)
	}

	s.recordRun(ctx, cycle, biz.ID, result)

	last, err := s.lastState(ctx, biz.ID)
	if err != nil {
		return err
	}

	decision := alerting.DetectChange(last, result.Status, result.ReasonCodes(), forceNotify)

	if s.stateStore != nil {
		record := storage.StateRecord{
			BusinessID:  biz.ID,
			Status:      string(decision.Next.Status),
			ReasonCodes: decision.Next.ReasonCodes,
		}
		if err := s.stateStore.UpsertState(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("business_id", biz.ID).Msg("failed to persist drift state")
		}
	}

	if !decision.Changed {
		s.logger.Debug().Str("business_id", biz.ID).
			Str("status", string(result.Status)).
			Msg("no material change; alert suppressed")
		return nil
	}

	s.emitAlert(ctx, cycle, biz, last, result)
	return nil
}

func (s *Service) emitAlert(ctx context.Context, cycle time.Time, biz aggregator.Business, last *alerting.State, result engine.Result) {
	if s.alertStore != nil {
		metaJSON, err := json.Marshal(result.Meta)
		if err != nil {
			metaJSON = nil
		}
		record := storage.AlertRecord{
			BusinessID:  biz.ID,
			Status:      string(result.Status),
			ReasonCodes: result.ReasonCodes(),
			WindowStart: cycle.Add(-s.window),
			WindowEnd:   cycle,
			MRIScore:    result.Meta.MRIScore,
			Meta:        metaJSON,
		}
		if _, err := s.alertStore.InsertAlert(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("business_id", biz.ID).Msg("failed to persist alert record")
		}
	}

	s.logger.Info().Str("business_id", biz.ID).
		Str("status", string(result.Status)).
		Int("mri", result.Meta.MRIScore).
		Strs("reasons", result.ReasonCodes()).
		Msg("drift status changed")

	if !s.alertsOn || s.notifier == nil {
		return
	}

	sum := summary.Generate(result, summary.Options{
		MonthlyRevenueCents: biz.MonthlyRevenueCents,
		DetailsPath:         path.Join(s.detailsBase, biz.ID),
	})

	note := alerting.Notification{
		BusinessID:   biz.ID,
		BusinessName: biz.Name,
		Cycle:        cycle,
		Status:       result.Status,
		Direction:    result.Meta.Direction,
		MRIScore:     result.Meta.MRIScore,
		Reasons:      result.Reasons,
		Summary:      sum,
		Channels:     s.channels,
	}
	if last != nil {
		note.PreviousStatus = last.Status
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("business_id", biz.ID).Msg("failed to dispatch alert")
	}
}

func (s *Service) recordRun(ctx context.Context, cycle time.Time, businessID string, result engine.Result) {
	if s.runStore == nil {
		return
	}

	run := storage.RunRecord{
		BusinessID: businessID,
		Cycle:      cycle,
		EngineName: result.Meta.Engine,
		Status:     string(result.Status),
		MRIScore:   result.Meta.MRIScore,
	}
	if m := result.Meta.Revenue; m != nil && m.Revenue != nil {
		delta := m.Revenue.DeltaPct
		run.DeltaPct = &delta
	}

	if err := s.runStore.InsertRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("business_id", businessID).Msg("failed to persist mri run")
	}
}

func (s *Service) lastState(ctx context.Context, businessID string) (*alerting.State, error) {
	if s.stateStore == nil {
		return nil, nil
	}

	record, err := s.stateStore.GetState(ctx, businessID)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return nil, nil
		}
		return nil, fmt.Errorf("load drift state: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return &alerting.State{
		Status:      engine.Status(record.Status),
		ReasonCodes: record.ReasonCodes,
	}, nil
}

func (s *Service) acquireLock(ctx context.Context, businessID string) (func(), bool, error) {
	if s.locker == nil {
		return nil, true, nil
	}
	key := storage.LockKeyForBusiness(businessID)
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
