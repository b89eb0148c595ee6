package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/user/pathwatch/internal/model"
)

// AlertStorage handles alert rules and event history.
type AlertStorage struct {
	db *DB
}

// NewAlertStorage creates a new alert storage handler.
func NewAlertStorage(db *DB) *AlertStorage {
	return &AlertStorage{db: db}
}

// CreateRule stores a rule and fills in its ID.
func (s *AlertStorage) CreateRule(ctx context.Context, r *model.AlertRule) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_rules (target_id, metric, operator, threshold, duration_samples,
			hop, action, action_config, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TargetID, r.Metric, r.Operator, r.Threshold, r.DurationSamples,
		r.Hop, string(r.Action), string(r.ActionConfig), r.Enabled)
	if err != nil {
		return fmt.Errorf("failed to insert alert rule: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// Rules returns rules for one target; enabledOnly filters disabled ones.
func (s *AlertStorage) Rules(ctx context.Context, targetID int64, enabledOnly bool) ([]model.AlertRule, error) {
	query := `SELECT id, target_id, metric, operator, threshold, duration_samples,
		hop, action, action_config, enabled FROM alert_rules WHERE target_id = ?`
	if enabledOnly {
		query += ` AND enabled = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []model.AlertRule
	for rows.Next() {
		var (
			r              model.AlertRule
			action, config sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.TargetID, &r.Metric, &r.Operator, &r.Threshold,
			&r.DurationSamples, &r.Hop, &action, &config, &r.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		r.Action = model.ActionType(action.String)
		if config.Valid && config.String != "" {
			r.ActionConfig = json.RawMessage(config.String)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// DeleteRule removes a rule.
func (s *AlertStorage) DeleteRule(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetRuleEnabled flips a rule's enabled flag.
func (s *AlertStorage) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alert_rules SET enabled = ? WHERE id = ?`, enabled, id)
	return err
}

// AppendEvent records one alert state transition.
func (s *AlertStorage) AppendEvent(ctx context.Context, ev *model.AlertEvent) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_events (rule_id, target_id, kind, metric, value, message, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RuleID, ev.TargetID, string(ev.Kind), ev.Metric, ev.Value, ev.Message, ev.At)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}
	ev.ID, _ = res.LastInsertId()
	return nil
}

// Events returns the alert history for a target, newest first.
func (s *AlertStorage) Events(ctx context.Context, targetID int64, limit int) ([]model.AlertEvent, error) {
	query := `SELECT id, rule_id, target_id, kind, metric, value, message, at
		FROM alert_events WHERE target_id = ? ORDER BY at DESC, id DESC`
	args := []any{targetID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var events []model.AlertEvent
	for rows.Next() {
		var (
			ev   model.AlertEvent
			kind string
		)
		if err := rows.Scan(&ev.ID, &ev.RuleID, &ev.TargetID, &kind,
			&ev.Metric, &ev.Value, &ev.Message, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		ev.Kind = model.AlertEventKind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}
