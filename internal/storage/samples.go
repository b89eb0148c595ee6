package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/pathwatch/internal/model"
)

// SampleStorage handles sample persistence. Samples are append-only.
type SampleStorage struct {
	db *DB
}

// NewSampleStorage creates a new sample storage handler.
func NewSampleStorage(db *DB) *SampleStorage {
	return &SampleStorage{db: db}
}

// Append stores all hop rows of one trace run in a single transaction.
func (s *SampleStorage) Append(ctx context.Context, targetID int64, at time.Time, hops []model.Hop) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (target_id, sampled_at, hop_num, addr, name, rtt_ms, is_timeout)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample statement: %w", err)
	}
	defer stmt.Close()

	for _, h := range hops {
		var rtt sql.NullFloat64
		if h.RTTMs != nil {
			rtt = sql.NullFloat64{Float64: *h.RTTMs, Valid: true}
		}
		var addr, name sql.NullString
		if h.Addr != "" {
			addr = sql.NullString{String: h.Addr, Valid: true}
		}
		if h.Name != "" {
			name = sql.NullString{String: h.Name, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, targetID, at, h.Number, addr, name, rtt, h.Timeout); err != nil {
			return fmt.Errorf("failed to insert hop %d: %w", h.Number, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit samples for one (target, hop), most recent
// first. limit <= 0 returns all available.
func (s *SampleStorage) Recent(ctx context.Context, targetID int64, hopNumber, limit int) ([]model.Sample, error) {
	query := `SELECT id, target_id, sampled_at, hop_num, addr, name, rtt_ms, is_timeout
		FROM samples WHERE target_id = ? AND hop_num = ? ORDER BY sampled_at DESC, id DESC`
	args := []any{targetID, hopNumber}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// HopNumbers returns the distinct hop numbers seen for a target.
func (s *SampleStorage) HopNumbers(ctx context.Context, targetID int64) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT hop_num FROM samples WHERE target_id = ? ORDER BY hop_num`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hop numbers: %w", err)
	}
	defer rows.Close()

	var hops []int
	for rows.Next() {
		var h int
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hops = append(hops, h)
	}
	return hops, rows.Err()
}

// MaxHop returns the highest hop number seen for a target, 0 when no
// samples exist.
func (s *SampleStorage) MaxHop(ctx context.Context, targetID int64) (int, error) {
	var h sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(hop_num) FROM samples WHERE target_id = ?`, targetID).Scan(&h)
	if err != nil {
		return 0, err
	}
	return int(h.Int64), nil
}

// Timeline returns samples for one (target, hop) in time order between
// the optional bounds, oldest first, for graphing.
func (s *SampleStorage) Timeline(ctx context.Context, targetID int64, hopNumber int, since, until time.Time) ([]model.Sample, error) {
	query := `SELECT id, target_id, sampled_at, hop_num, addr, name, rtt_ms, is_timeout
		FROM samples WHERE target_id = ? AND hop_num = ?`
	args := []any{targetID, hopNumber}
	if !since.IsZero() {
		query += ` AND sampled_at >= ?`
		args = append(args, since)
	}
	if !until.IsZero() {
		query += ` AND sampled_at <= ?`
		args = append(args, until)
	}
	query += ` ORDER BY sampled_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

func scanSamples(rows *sql.Rows) ([]model.Sample, error) {
	var samples []model.Sample
	for rows.Next() {
		var (
			sm         model.Sample
			addr, name sql.NullString
			rtt        sql.NullFloat64
		)
		if err := rows.Scan(&sm.ID, &sm.TargetID, &sm.SampledAt, &sm.HopNumber,
			&addr, &name, &rtt, &sm.Timeout); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		sm.Addr = addr.String
		sm.Name = name.String
		if rtt.Valid {
			v := rtt.Float64
			sm.RTTMs = &v
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}
