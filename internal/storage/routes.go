package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/user/pathwatch/internal/model"
)

// RouteStorage handles route snapshots and change history.
type RouteStorage struct {
	db *DB
}

// NewRouteStorage creates a new route storage handler.
func NewRouteStorage(db *DB) *RouteStorage {
	return &RouteStorage{db: db}
}

// LastRoute returns the current snapshot for a target, nil when none
// has been established yet.
func (s *RouteStorage) LastRoute(ctx context.Context, targetID int64) ([]string, error) {
	var joined string
	err := s.db.QueryRowContext(ctx,
		`SELECT addrs FROM route_snapshots WHERE target_id = ?`, targetID).Scan(&joined)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query route snapshot: %w", err)
	}
	return splitRoute(joined), nil
}

// ReplaceRoute atomically replaces the target's current snapshot.
func (s *RouteStorage) ReplaceRoute(ctx context.Context, targetID int64, addrs []string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO route_snapshots (target_id, addrs, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(target_id) DO UPDATE SET addrs = excluded.addrs, updated_at = excluded.updated_at`,
		targetID, joinRoute(addrs), at)
	if err != nil {
		return fmt.Errorf("failed to replace route snapshot: %w", err)
	}
	return nil
}

// AppendRouteChange records a confirmed route change.
func (s *RouteStorage) AppendRouteChange(ctx context.Context, change *model.RouteChange) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO route_changes (target_id, detected_at, old_route, new_route) VALUES (?, ?, ?, ?)`,
		change.TargetID, change.DetectedAt, joinRoute(change.OldRoute), joinRoute(change.NewRoute))
	if err != nil {
		return fmt.Errorf("failed to insert route change: %w", err)
	}
	change.ID, _ = res.LastInsertId()
	return nil
}

// Changes returns the route-change history for a target, newest first.
func (s *RouteStorage) Changes(ctx context.Context, targetID int64, limit int) ([]model.RouteChange, error) {
	query := `SELECT id, target_id, detected_at, old_route, new_route
		FROM route_changes WHERE target_id = ? ORDER BY detected_at DESC, id DESC`
	args := []any{targetID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query route changes: %w", err)
	}
	defer rows.Close()

	var changes []model.RouteChange
	for rows.Next() {
		var (
			c              model.RouteChange
			oldSeq, newSeq string
		)
		if err := rows.Scan(&c.ID, &c.TargetID, &c.DetectedAt, &oldSeq, &newSeq); err != nil {
			return nil, fmt.Errorf("failed to scan route change: %w", err)
		}
		c.OldRoute = splitRoute(oldSeq)
		c.NewRoute = splitRoute(newSeq)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func joinRoute(addrs []string) string {
	return strings.Join(addrs, ",")
}

func splitRoute(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}
