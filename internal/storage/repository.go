package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	getStateSQL = `SELECT business_id, status, reason_codes, updated_at
    FROM drift_state
    WHERE business_id = $1;`

	upsertStateSQL = `INSERT INTO drift_state (
        business_id,
        status,
        reason_codes,
        updated_at
    ) VALUES (
        $1,$2,$3,now()
    )
    ON CONFLICT (business_id) DO UPDATE
    SET status       = EXCLUDED.status,
        reason_codes = EXCLUDED.reason_codes,
        updated_at   = now();`

	insertAlertSQL = `INSERT INTO drift_alerts (
        business_id,
        status,
        reason_codes,
        window_start,
        window_end,
        mri_score,
        meta
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id, business_id, status, reason_codes, window_start, window_end, mri_score, meta, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        business_id,
        status,
        reason_codes,
        window_start,
        window_end,
        mri_score,
        meta,
        created_at
    FROM drift_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM drift_alerts WHERE created_at < $1;`

	insertRunSQL = `INSERT INTO mri_runs (
        business_id,
        cycle_ts,
        engine,
        status,
        mri_score,
        delta_pct
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (business_id, cycle_ts) DO UPDATE
    SET engine    = EXCLUDED.engine,
        status    = EXCLUDED.status,
        mri_score = EXCLUDED.mri_score,
        delta_pct = EXCLUDED.delta_pct;`

	listRunsBetweenSQL = `SELECT
        business_id,
        cycle_ts,
        engine,
        status,
        mri_score,
        delta_pct,
        created_at
    FROM mri_runs
    WHERE business_id = $1
      AND cycle_ts >= $2
      AND cycle_ts < $3
    ORDER BY cycle_ts;`

	countRunsSQL = `SELECT COUNT(*) FROM mri_runs;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// StateStore persists the change-detector state per business.
type StateStore interface {
	GetState(ctx context.Context, businessID string) (*StateRecord, error)
	UpsertState(ctx context.Context, record StateRecord) error
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// RunStore persists per-run MRI samples.
type RunStore interface {
	InsertRun(ctx context.Context, run RunRecord) error
	ListRunsBetween(ctx context.Context, businessID string, from, to time.Time) ([]RunRecord, error)
	CountRuns(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// LockKeyForBusiness derives a stable advisory lock key for a business.
// The lock is what guarantees a single writer per business in the
// change-detector's read-compare-write cycle.
func LockKeyForBusiness(businessID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(businessID))
	return int64(h.Sum64())
}

// Store aggregates access to drift state, alerts, and MRI runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Unlock is best effort; the lock dies with the session anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// GetState loads the last persisted state for a business. A missing row
// returns (nil, nil): the caller treats it as the first-ever run.
func (s *Store) GetState(ctx context.Context, businessID string) (*StateRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var rec StateRecord
	row := pool.QueryRow(ctx, getStateSQL, businessID)
	if scanErr := row.Scan(&rec.BusinessID, &rec.Status, &rec.ReasonCodes, &rec.UpdatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get drift state: %w", scanErr)
	}
	return &rec, nil
}

// UpsertState persists the change-detector state for the next run.
func (s *Store) UpsertState(ctx context.Context, record StateRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertStateSQL, record.BusinessID, record.Status, record.ReasonCodes); execErr != nil {
		return fmt.Errorf("upsert drift state: %w", execErr)
	}
	return nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	var meta interface{}
	if len(alert.Meta) > 0 {
		meta = []byte(alert.Meta)
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.BusinessID,
		alert.Status,
		alert.ReasonCodes,
		alert.WindowStart,
		alert.WindowEnd,
		alert.MRIScore,
		meta,
	)

	rec, scanErr := scanAlert(row)
	if scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

// InsertRun persists one MRI run sample.
func (s *Store) InsertRun(ctx context.Context, run RunRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var delta interface{}
	if run.DeltaPct != nil {
		delta = *run.DeltaPct
	}

	if _, execErr := pool.Exec(ctx, insertRunSQL,
		run.BusinessID,
		run.Cycle,
		run.EngineName,
		run.Status,
		run.MRIScore,
		delta,
	); execErr != nil {
		return fmt.Errorf("insert mri run: %w", execErr)
	}
	return nil
}

// ListRunsBetween lists MRI runs for one business within a time window.
func (s *Store) ListRunsBetween(ctx context.Context, businessID string, from, to time.Time) ([]RunRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRunsBetweenSQL, businessID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list mri runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		var (
			rec   RunRecord
			delta sql.NullFloat64
		)
		if scanErr := rows.Scan(
			&rec.BusinessID,
			&rec.Cycle,
			&rec.EngineName,
			&rec.Status,
			&rec.MRIScore,
			&delta,
			&rec.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		if delta.Valid {
			value := delta.Float64
			rec.DeltaPct = &value
		}
		runs = append(runs, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// CountRuns counts stored MRI runs.
func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRunsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count mri runs: %w", scanErr)
	}
	return count, nil
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec  AlertRecord
		meta []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.BusinessID,
		&rec.Status,
		&rec.ReasonCodes,
		&rec.WindowStart,
		&rec.WindowEnd,
		&rec.MRIScore,
		&meta,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}
	if len(meta) > 0 {
		rec.Meta = json.RawMessage(meta)
	}
	return rec, nil
}
