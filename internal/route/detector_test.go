package route

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pathwatch/internal/model"
)

type memStore struct {
	routes  map[int64][]string
	changes []model.RouteChange
}

func newMemStore() *memStore {
	return &memStore{routes: map[int64][]string{}}
}

func (m *memStore) LastRoute(_ context.Context, id int64) ([]string, error) {
	return m.routes[id], nil
}

func (m *memStore) ReplaceRoute(_ context.Context, id int64, addrs []string, _ time.Time) error {
	m.routes[id] = addrs
	return nil
}

func (m *memStore) AppendRouteChange(_ context.Context, c *model.RouteChange) error {
	m.changes = append(m.changes, *c)
	return nil
}

func hops(addrs ...string) []model.Hop {
	hs := make([]model.Hop, len(addrs))
	for i, a := range addrs {
		hs[i] = model.Hop{Number: i + 1, Addr: a, Timeout: a == ""}
	}
	return hs
}

func TestCheck_FirstTraceEstablishesSnapshot(t *testing.T) {
	store := newMemStore()
	d := NewDetector(store, false)

	change, err := d.Check(context.Background(), 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, change, "first trace reports no change")
	assert.Equal(t, []string{"A", "B", "C"}, store.routes[1])
	assert.Empty(t, store.changes)
}

func TestCheck_ChangeReplacesSnapshot(t *testing.T) {
	store := newMemStore()
	d := NewDetector(store, false)
	ctx := context.Background()

	_, err := d.Check(ctx, 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)

	change, err := d.Check(ctx, 1, hops("A", "B", "D"), time.Now())
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Equal(t, []string{"A", "B", "C"}, change.OldRoute)
	assert.Equal(t, []string{"A", "B", "D"}, change.NewRoute)
	assert.Equal(t, []string{"A", "B", "D"}, store.routes[1])
	assert.Len(t, store.changes, 1)
}

func TestCheck_IdenticalSequenceNoChange(t *testing.T) {
	store := newMemStore()
	d := NewDetector(store, false)
	ctx := context.Background()

	_, err := d.Check(ctx, 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)
	change, err := d.Check(ctx, 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, change)
	assert.Empty(t, store.changes)
}

func TestCheck_LengthChangeIsChange(t *testing.T) {
	store := newMemStore()
	d := NewDetector(store, false)
	ctx := context.Background()

	_, err := d.Check(ctx, 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)
	change, err := d.Check(ctx, 1, hops("A", "B"), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, change)
}

func TestSequence_TimeoutPlaceholder(t *testing.T) {
	d := NewDetector(newMemStore(), false)
	seq := d.Sequence(hops("A", "", "C"))
	assert.Equal(t, []string{"A", Unknown, "C"}, seq)
}

func TestSequence_IgnoreTimeouts(t *testing.T) {
	store := newMemStore()
	d := NewDetector(store, true)
	ctx := context.Background()

	_, err := d.Check(ctx, 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)

	// B stops answering; with ignore_timeouts the route is considered
	// unchanged even though the comparison sequence shortens.
	change, err := d.Check(ctx, 1, hops("A", "", "C"), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, change, "shorter sequence still differs from [A B C]")

	// After the snapshot settles on [A C], flapping B is invisible.
	change, err = d.Check(ctx, 1, hops("A", "", "C"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, change)
	change, err = d.Check(ctx, 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)
	assert.NotNil(t, change, "regaining B restores the three-hop route")
}

func TestCheck_TimeoutFlapIsConsistent(t *testing.T) {
	store := newMemStore()
	d := NewDetector(store, false)
	ctx := context.Background()

	_, err := d.Check(ctx, 1, hops("A", "B", "C"), time.Now())
	require.NoError(t, err)

	change, err := d.Check(ctx, 1, hops("A", "", "C"), time.Now())
	require.NoError(t, err)
	require.NotNil(t, change, "losing an intermediate reply is a change under the placeholder policy")
	assert.Equal(t, []string{"A", Unknown, "C"}, change.NewRoute)
}
