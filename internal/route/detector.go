// Package route detects changes in a target's hop-address sequence.
package route

import (
	"context"
	"time"

	"github.com/user/pathwatch/internal/model"
)

// Unknown is the placeholder a timed-out hop contributes to the
// comparison sequence, so losing and regaining an intermediate reply is
// treated consistently.
const Unknown = "*"

// Store is the persistence surface the detector needs.
type Store interface {
	LastRoute(ctx context.Context, targetID int64) ([]string, error)
	ReplaceRoute(ctx context.Context, targetID int64, addrs []string, at time.Time) error
	AppendRouteChange(ctx context.Context, change *model.RouteChange) error
}

// Detector compares each completed trace against the target's stored
// route snapshot.
type Detector struct {
	store Store

	// When set, timed-out hops are dropped from the comparison instead
	// of contributing Unknown slots.
	ignoreTimeouts bool
}

// NewDetector creates a detector over the given snapshot store.
func NewDetector(store Store, ignoreTimeouts bool) *Detector {
	return &Detector{store: store, ignoreTimeouts: ignoreTimeouts}
}

// Sequence maps a hop list to the comparison sequence under the
// detector's timeout policy.
func (d *Detector) Sequence(hops []model.Hop) []string {
	seq := make([]string, 0, len(hops))
	for _, h := range hops {
		if h.Timeout || h.Addr == "" {
			if d.ignoreTimeouts {
				continue
			}
			seq = append(seq, Unknown)
			continue
		}
		seq = append(seq, h.Addr)
	}
	return seq
}

// Check compares the new trace to the stored snapshot. On the first
// trace for a target it establishes the snapshot and reports no change.
// On a confirmed change it replaces the snapshot atomically and records
// a route-change event; alerting on it is not the detector's business.
func (d *Detector) Check(ctx context.Context, targetID int64, hops []model.Hop, at time.Time) (*model.RouteChange, error) {
	newSeq := d.Sequence(hops)

	oldSeq, err := d.store.LastRoute(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if oldSeq == nil {
		return nil, d.store.ReplaceRoute(ctx, targetID, newSeq, at)
	}
	if equal(oldSeq, newSeq) {
		return nil, nil
	}

	if err := d.store.ReplaceRoute(ctx, targetID, newSeq, at); err != nil {
		return nil, err
	}
	change := &model.RouteChange{
		TargetID:   targetID,
		DetectedAt: at,
		OldRoute:   oldSeq,
		NewRoute:   newSeq,
	}
	if err := d.store.AppendRouteChange(ctx, change); err != nil {
		return change, err
	}
	return change, nil
}

// equal reports whether two sequences have the same length and the same
// addresses in the same order.
func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
