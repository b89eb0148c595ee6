package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pathwatch/internal/model"
)

func sample(hop int, rtt float64, timeout bool, age time.Duration) model.Sample {
	s := model.Sample{
		TargetID:  1,
		SampledAt: time.Now().Add(-age),
		HopNumber: hop,
		Timeout:   timeout,
	}
	if !timeout {
		s.Addr = "10.0.0.1"
		s.RTTMs = &rtt
	}
	return s
}

func TestFocus_EmptyWindow(t *testing.T) {
	st := Focus(nil, 10)
	assert.Nil(t, st.AvgMs)
	assert.Nil(t, st.MinMs)
	assert.Nil(t, st.CurMs)
	assert.Equal(t, 0.0, st.LossPct, "empty window must not divide by zero")
}

func TestFocus_LossPercentage(t *testing.T) {
	// 5 samples, 2 timeouts -> 40% loss.
	samples := []model.Sample{
		sample(3, 12, false, 0),
		sample(3, 0, true, time.Second),
		sample(3, 15, false, 2*time.Second),
		sample(3, 0, true, 3*time.Second),
		sample(3, 18, false, 4*time.Second),
	}
	st := Focus(samples, 10)
	assert.InDelta(t, 40.0, st.LossPct, 0.001)
}

func TestFocus_AvgMinOverValidOnly(t *testing.T) {
	samples := []model.Sample{
		sample(2, 30, false, 0),
		sample(2, 0, true, time.Second),
		sample(2, 10, false, 2*time.Second),
	}
	st := Focus(samples, 10)
	require.NotNil(t, st.AvgMs)
	require.NotNil(t, st.MinMs)
	assert.InDelta(t, 20.0, *st.AvgMs, 0.001)
	assert.InDelta(t, 10.0, *st.MinMs, 0.001)
}

func TestFocus_AllTimeoutsYieldsNoData(t *testing.T) {
	samples := []model.Sample{
		sample(4, 0, true, 0),
		sample(4, 0, true, time.Second),
		sample(4, 0, true, 2*time.Second),
	}
	st := Focus(samples, 10)
	assert.Nil(t, st.AvgMs, "all-timeout window yields no average, not zero")
	assert.Nil(t, st.MinMs)
	assert.Nil(t, st.CurMs)
	assert.InDelta(t, 100.0, st.LossPct, 0.001)
}

func TestFocus_CurIsMostRecent(t *testing.T) {
	samples := []model.Sample{
		sample(1, 42, false, 0),
		sample(1, 7, false, time.Second),
	}
	st := Focus(samples, 10)
	require.NotNil(t, st.CurMs)
	assert.InDelta(t, 42.0, *st.CurMs, 0.001)
}

func TestFocus_CurNilWhenLatestTimedOut(t *testing.T) {
	samples := []model.Sample{
		sample(1, 0, true, 0),
		sample(1, 7, false, time.Second),
	}
	st := Focus(samples, 10)
	assert.Nil(t, st.CurMs)
	require.NotNil(t, st.AvgMs)
	assert.InDelta(t, 7.0, *st.AvgMs, 0.001)
}

func TestFocus_WindowTruncation(t *testing.T) {
	// 4 samples but focus of 2: only the newest two count.
	samples := []model.Sample{
		sample(1, 10, false, 0),
		sample(1, 20, false, time.Second),
		sample(1, 0, true, 2*time.Second),
		sample(1, 90, false, 3*time.Second),
	}
	st := Focus(samples, 2)
	require.NotNil(t, st.AvgMs)
	assert.InDelta(t, 15.0, *st.AvgMs, 0.001)
	assert.Equal(t, 0.0, st.LossPct)
}

func TestFocus_AllAvailable(t *testing.T) {
	samples := []model.Sample{
		sample(1, 10, false, 0),
		sample(1, 0, true, time.Second),
	}
	st := Focus(samples, 0)
	assert.InDelta(t, 50.0, st.LossPct, 0.001)
}
