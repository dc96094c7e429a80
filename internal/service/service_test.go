package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"drift-health-alerts/internal/aggregator"
	"drift-health-alerts/internal/alerting"
	"drift-health-alerts/internal/config"
	"drift-health-alerts/internal/engine"
	"drift-health-alerts/internal/storage"
)

type fakeAggregator struct {
	businesses []aggregator.Business
	snapshots  map[string]engine.Snapshot
	failFetch  map[string]error
}

func (f *fakeAggregator) ListBusinesses(ctx context.Context) ([]aggregator.Business, error) {
	return f.businesses, nil
}

func (f *fakeAggregator) FetchSnapshot(ctx context.Context, businessID string) (engine.Snapshot, error) {
	if err := f.failFetch[businessID]; err != nil {
		return engine.Snapshot{}, err
	}
	return f.snapshots[businessID], nil
}

type fakeStateStore struct {
	states map[string]storage.StateRecord
}

func (f *fakeStateStore) GetState(ctx context.Context, businessID string) (*storage.StateRecord, error) {
	rec, ok := f.states[businessID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStateStore) UpsertState(ctx context.Context, record storage.StateRecord) error {
	f.states[record.BusinessID] = record
	return nil
}

type fakeAlertStore struct {
	alerts []storage.AlertRecord
}

func (f *fakeAlertStore) InsertAlert(ctx context.Context, alert storage.AlertRecord) (storage.AlertRecord, error) {
	f.alerts = append(f.alerts, alert)
	return alert, nil
}

func (f *fakeAlertStore) ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error) {
	return f.alerts, nil
}

func (f *fakeAlertStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	return nil
}

type fakeRunStore struct {
	runs []storage.RunRecord
}

func (f *fakeRunStore) InsertRun(ctx context.Context, run storage.RunRecord) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunStore) ListRunsBetween(ctx context.Context, businessID string, from, to time.Time) ([]storage.RunRecord, error) {
	return f.runs, nil
}

func (f *fakeRunStore) CountRuns(ctx context.Context) (int64, error) {
	return int64(len(f.runs)), nil
}

type fakeLocker struct {
	acquired bool
	calls    int
}

func (f *fakeLocker) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	f.calls++
	if !f.acquired {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type fakeNotifier struct {
	notes []alerting.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	f.notes = append(f.notes, note)
	return nil
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Engine = engine.DefaultConfig()
	cfg.Aggregator.CurrentWindow = 14 * 24 * time.Hour
	cfg.Alerting.Enabled = true
	cfg.Alerting.Channels = []string{"telegram"}
	cfg.Alerting.DetailsBasePath = "/dashboard/businesses"
	return cfg
}

func driftingSnapshot() engine.Snapshot {
	return engine.Snapshot{
		BaselineNetRevenueCents14d: i64(100_000),
		CurrentNetRevenueCents14d:  i64(70_000),
		BaselineRefundRate:         f64(0.02),
		CurrentRefundRate:          f64(0.02),
		BaselineGrossCents14d:      240_000,
	}
}

func TestEvaluateBusinessAlertsOnceAcrossCycles(t *testing.T) {
	biz := aggregator.Business{ID: "biz-1", Name: "Bike Shop", Source: engine.SourcePayments, MonthlyRevenueCents: i64(5_000_000)}
	agg := &fakeAggregator{
		businesses: []aggregator.Business{biz},
		snapshots:  map[string]engine.Snapshot{"biz-1": driftingSnapshot()},
	}
	states := &fakeStateStore{states: map[string]storage.StateRecord{}}
	alerts := &fakeAlertStore{}
	runs := &fakeRunStore{}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), nil, agg, Stores{State: states, Alerts: alerts, Runs: runs}, notifier, zerolog.Nop())

	cycle := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := svc.EvaluateBusiness(context.Background(), cycle, biz, false); err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("首次评估应触发告警, 实际 %d 次", len(notifier.notes))
	}
	if len(alerts.alerts) != 1 {
		t.Fatalf("首次评估应落库一条 alert, 实际 %d", len(alerts.alerts))
	}

	// Same snapshot on the next cycle: status and reason set are
	// unchanged, so the alert is suppressed but the run still records.
	if err := svc.EvaluateBusiness(context.Background(), cycle.Add(time.Hour), biz, false); err != nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("重复状态不应再次告警, 实际 %d 次", len(notifier.notes))
	}
	if len(runs.runs) != 2 {
		t.Fatalf("每个周期都应记录 run, 实际 %d", len(runs.runs))
	}

	note := notifier.notes[0]
	if note.Status != engine.StatusAttention {
		t.Fatalf("期望 attention, 实际 %s", note.Status)
	}
	if note.PreviousStatus != "" {
		t.Fatalf("首次评估不应有上一状态, 实际 %s", note.PreviousStatus)
	}
	if note.Summary.Impact.EstMonthlyCents == nil || *note.Summary.Impact.EstMonthlyCents != -1_500_000 {
		t.Fatalf("影响估算错误: %#v", note.Summary.Impact.EstMonthlyCents)
	}
	if note.Summary.DetailsPath != "/dashboard/businesses/biz-1" {
		t.Fatalf("details path 错误: %s", note.Summary.DetailsPath)
	}
}

func TestEvaluateBusinessForceNotify(t *testing.T) {
	biz := aggregator.Business{ID: "biz-1", Name: "Bike Shop", Source: engine.SourcePayments}
	agg := &fakeAggregator{
		businesses: []aggregator.Business{biz},
		snapshots:  map[string]engine.Snapshot{"biz-1": driftingSnapshot()},
	}
	states := &fakeStateStore{states: map[string]storage.StateRecord{}}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), nil, agg, Stores{State: states}, notifier, zerolog.Nop())

	cycle := time.Now().UTC()
	if err := svc.EvaluateBusiness(context.Background(), cycle, biz, false); err != nil {
		t.Fatalf("first evaluation: %v", err)
	}
	if err := svc.EvaluateBusiness(context.Background(), cycle, biz, true); err != nil {
		t.Fatalf("forced evaluation: %v", err)
	}
	if len(notifier.notes) != 2 {
		t.Fatalf("forceNotify 应绕过变更检测, 实际 %d 次", len(notifier.notes))
	}
}

func TestProcessCycleIsolatesFailures(t *testing.T) {
	healthy := aggregator.Business{ID: "biz-ok", Name: "Corner Cafe", Source: engine.SourcePayments}
	broken := aggregator.Business{ID: "biz-bad", Name: "Bike Shop", Source: engine.SourcePayments}
	agg := &fakeAggregator{
		businesses: []aggregator.Business{broken, healthy},
		snapshots:  map[string]engine.Snapshot{"biz-ok": driftingSnapshot()},
		failFetch:  map[string]error{"biz-bad": errors.New("upstream timeout")},
	}
	states := &fakeStateStore{states: map[string]storage.StateRecord{}}
	runs := &fakeRunStore{}

	svc := New(testConfig(), nil, agg, Stores{State: states, Runs: runs}, nil, zerolog.Nop())

	if err := svc.ProcessCycle(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("单个 business 失败不应中断整批: %v", err)
	}
	if len(runs.runs) != 1 || runs.runs[0].BusinessID != "biz-ok" {
		t.Fatalf("健康的 business 仍应完成评估: %#v", runs.runs)
	}
	if _, ok := states.states["biz-ok"]; !ok {
		t.Fatal("健康的 business 应持久化状态")
	}
}

func TestEvaluateBusinessSkipsWhenLockHeld(t *testing.T) {
	biz := aggregator.Business{ID: "biz-1", Name: "Bike Shop", Source: engine.SourcePayments}
	agg := &fakeAggregator{
		businesses: []aggregator.Business{biz},
		snapshots:  map[string]engine.Snapshot{"biz-1": driftingSnapshot()},
	}
	locker := &fakeLocker{acquired: false}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), nil, agg, Stores{Locker: locker}, notifier, zerolog.Nop())

	if err := svc.EvaluateBusiness(context.Background(), time.Now().UTC(), biz, false); err != nil {
		t.Fatalf("锁被占用时应静默跳过: %v", err)
	}
	if locker.calls != 1 {
		t.Fatalf("应尝试获取一次锁, 实际 %d", locker.calls)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("未获取锁时不应评估或告警")
	}
}
