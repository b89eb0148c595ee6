// Package stats computes focus-window statistics over recent samples.
package stats

import (
	"github.com/user/pathwatch/internal/model"
)

// Focus computes hop statistics over the most recent focusSize samples.
// The input must be ordered most recent first, the way the sample store
// returns it. A focusSize <= 0 means "all available". Avg and min cover
// non-timeout samples only; cur is the most recent sample's RTT, nil
// when that sample timed out; loss is timeouts/total*100 and 0 for an
// empty window.
func Focus(samples []model.Sample, focusSize int) model.HopStats {
	if focusSize > 0 && len(samples) > focusSize {
		samples = samples[:focusSize]
	}

	st := model.HopStats{}
	if len(samples) == 0 {
		return st
	}

	st.Hop = samples[0].HopNumber

	var (
		sum   float64
		min   float64
		valid int
		lost  int
	)
	for _, s := range samples {
		if s.Timeout || s.RTTMs == nil {
			lost++
			continue
		}
		v := *s.RTTMs
		sum += v
		if valid == 0 || v < min {
			min = v
		}
		valid++
	}

	if valid > 0 {
		avg := sum / float64(valid)
		mn := min
		st.AvgMs = &avg
		st.MinMs = &mn
	}
	if latest := samples[0]; !latest.Timeout && latest.RTTMs != nil {
		cur := *latest.RTTMs
		st.CurMs = &cur
	}
	st.LossPct = float64(lost) / float64(len(samples)) * 100

	// Most recent non-empty address and name for display.
	for _, s := range samples {
		if s.Addr != "" {
			st.Addr = s.Addr
			st.Name = s.Name
			break
		}
	}

	return st
}
