package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/pathwatch/internal/model"
)

// TargetStorage handles target persistence.
type TargetStorage struct {
	db *DB
}

// NewTargetStorage creates a new target storage handler.
func NewTargetStorage(db *DB) *TargetStorage {
	return &TargetStorage{db: db}
}

// Create stores a target and fills in its ID and creation time.
func (s *TargetStorage) Create(ctx context.Context, t *model.Target) error {
	t.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (host, label, active, created_at, packet_type, packet_size,
			max_hops, timeout_ms, inter_probe_delay_ms, trace_interval_ms, final_hop_only)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Host, t.Label, t.Active, t.CreatedAt,
		string(t.Probe.PacketType), t.Probe.PacketSize, t.Probe.MaxHops,
		t.Probe.Timeout.Milliseconds(), t.Probe.InterProbeDelay.Milliseconds(),
		t.Probe.TraceInterval.Milliseconds(), t.Probe.FinalHopOnly)
	if err != nil {
		return fmt.Errorf("failed to insert target: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// Get fetches a single target by ID. Returns nil when not found.
func (s *TargetStorage) Get(ctx context.Context, id int64) (*model.Target, error) {
	row := s.db.QueryRowContext(ctx, selectTargets+` WHERE id = ?`, id)
	t, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// List returns all targets, newest first.
func (s *TargetStorage) List(ctx context.Context) ([]model.Target, error) {
	rows, err := s.db.QueryContext(ctx, selectTargets+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

// ListActive returns targets whose monitoring is switched on.
func (s *TargetStorage) ListActive(ctx context.Context) ([]model.Target, error) {
	rows, err := s.db.QueryContext(ctx, selectTargets+` WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

// SetActive flips a target's active flag. Deactivation stops its job but
// leaves already-stored samples untouched.
func (s *TargetStorage) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE targets SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("target %d not found", id)
	}
	return nil
}

// Delete removes a target and all cascade-linked rows.
func (s *TargetStorage) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

const selectTargets = `SELECT id, host, label, active, created_at, packet_type, packet_size,
	max_hops, timeout_ms, inter_probe_delay_ms, trace_interval_ms, final_hop_only FROM targets`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*model.Target, error) {
	var (
		t                              model.Target
		label                          sql.NullString
		packetType                     string
		timeoutMs, delayMs, intervalMs int64
	)
	err := row.Scan(&t.ID, &t.Host, &label, &t.Active, &t.CreatedAt,
		&packetType, &t.Probe.PacketSize, &t.Probe.MaxHops,
		&timeoutMs, &delayMs, &intervalMs, &t.Probe.FinalHopOnly)
	if err != nil {
		return nil, err
	}
	t.Label = label.String
	t.Probe.PacketType = model.PacketType(packetType)
	t.Probe.Timeout = time.Duration(timeoutMs) * time.Millisecond
	t.Probe.InterProbeDelay = time.Duration(delayMs) * time.Millisecond
	t.Probe.TraceInterval = time.Duration(intervalMs) * time.Millisecond
	return &t, nil
}
