// Package alerts evaluates alert rules against hop statistics and
// dispatches configured actions on state transitions.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/pathwatch/internal/model"
)

// Dispatcher hands a committed state transition to the action layer.
// Failures are the dispatcher's problem; they never reach back into the
// evaluator's state.
type Dispatcher interface {
	Dispatch(ctx context.Context, rule model.AlertRule, event model.AlertEvent) error
}

// operators maps rule operator strings to comparisons.
var operators = map[string]func(a, b float64) bool{
	">":  func(a, b float64) bool { return a > b },
	"<":  func(a, b float64) bool { return a < b },
	">=": func(a, b float64) bool { return a >= b },
	"<=": func(a, b float64) bool { return a <= b },
}

// ruleState is the per-rule transient runtime state. It lives only in
// memory and is rebuilt cold on restart.
type ruleState struct {
	consecutive int
	active      bool
	lastFiredAt time.Time
}

// Evaluator runs the per-rule hysteresis state machine.
type Evaluator struct {
	dispatcher Dispatcher
	logger     *zap.Logger

	// Minimum interval before a rule that recovered may dispatch a new
	// triggered event. Zero disables suppression. The state machine
	// transitions either way.
	renotifyInterval time.Duration

	// Rules for one target are evaluated by that target's run sequence
	// only; the lock is defense in depth should two runs ever overlap.
	mu     sync.Mutex
	states map[int64]*ruleState

	now func() time.Time
}

// NewEvaluator creates an evaluator dispatching through d.
func NewEvaluator(d Dispatcher, renotifyInterval time.Duration, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		dispatcher:       d,
		logger:           logger,
		renotifyInterval: renotifyInterval,
		states:           make(map[int64]*ruleState),
		now:              time.Now,
	}
}

// Evaluate feeds the current focus-window statistics of one target into
// every enabled rule and returns the events whose transitions committed.
func (e *Evaluator) Evaluate(ctx context.Context, rules []model.AlertRule, allStats []model.HopStats) []model.AlertEvent {
	var events []model.AlertEvent
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		matched, value := checkCondition(rule, allStats)
		if ev := e.transition(rule, matched, value); ev != nil {
			events = append(events, *ev)
			e.send(ctx, rule, *ev)
		}
	}
	return events
}

// transition advances one rule's state machine and returns the event to
// dispatch, if the sample caused a transition.
func (e *Evaluator) transition(rule model.AlertRule, matched bool, value float64) *model.AlertEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[rule.ID]
	if !ok {
		st = &ruleState{}
		e.states[rule.ID] = st
	}
	now := e.now()

	switch {
	case matched && !st.active:
		st.consecutive++
		if st.consecutive < max(rule.DurationSamples, 1) {
			return nil
		}
		st.active = true
		if e.renotifyInterval > 0 && !st.lastFiredAt.IsZero() &&
			now.Sub(st.lastFiredAt) < e.renotifyInterval {
			// Transition commits; only the dispatch is suppressed.
			return nil
		}
		st.lastFiredAt = now
		return e.event(rule, model.AlertTriggered, value, now)

	case !matched && !st.active:
		st.consecutive = 0
		return nil

	case !matched && st.active:
		st.active = false
		st.consecutive = 0
		return e.event(rule, model.AlertRecovered, value, now)

	default: // matched && active: already firing, no re-dispatch.
		return nil
	}
}

func (e *Evaluator) event(rule model.AlertRule, kind model.AlertEventKind, value float64, at time.Time) *model.AlertEvent {
	return &model.AlertEvent{
		RuleID:   rule.ID,
		TargetID: rule.TargetID,
		Kind:     kind,
		Metric:   rule.Metric,
		Value:    value,
		Message: fmt.Sprintf("alert %d %s: %s %s %g (value=%g) on target %d, hop=%s",
			rule.ID, kind, rule.Metric, rule.Operator, rule.Threshold, value, rule.TargetID, rule.Hop),
		At: at,
	}
}

func (e *Evaluator) send(ctx context.Context, rule model.AlertRule, ev model.AlertEvent) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.Dispatch(ctx, rule, ev); err != nil {
		e.logger.Warn("alert action dispatch failed",
			zap.Int64("rule_id", rule.ID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}

// Reset drops the runtime state of rules that no longer exist.
func (e *Evaluator) Reset(ruleID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, ruleID)
}

// checkCondition evaluates whether a rule's condition holds for the hops
// its selector targets, returning the offending (or representative)
// metric value.
func checkCondition(rule model.AlertRule, allStats []model.HopStats) (bool, float64) {
	cmp, ok := operators[rule.Operator]
	if !ok {
		return false, 0
	}

	hops := selectHops(rule.Hop, allStats)
	for _, hs := range hops {
		if v := metricValue(hs, rule.Metric); v != nil && cmp(*v, rule.Threshold) {
			return true, *v
		}
	}
	if len(hops) > 0 {
		if v := metricValue(hops[0], rule.Metric); v != nil {
			return false, *v
		}
	}
	return false, 0
}

// selectHops filters the per-hop statistics to the rule's selector:
// "any", "final", or a specific hop address.
func selectHops(selector string, allStats []model.HopStats) []model.HopStats {
	if len(allStats) == 0 {
		return nil
	}
	switch selector {
	case model.HopAny, "":
		return allStats
	case model.HopFinal:
		return allStats[len(allStats)-1:]
	default:
		for _, hs := range allStats {
			if hs.Addr == selector {
				return []model.HopStats{hs}
			}
		}
		return nil
	}
}

func metricValue(hs model.HopStats, metric string) *float64 {
	switch metric {
	case model.MetricLossPct:
		v := hs.LossPct
		return &v
	case model.MetricAvgRTT:
		return hs.AvgMs
	case model.MetricCurRTT:
		return hs.CurMs
	default:
		return nil
	}
}
