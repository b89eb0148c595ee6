package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pathwatch/internal/model"
)

func TestHub_PublishReachesSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1, 4)
	defer cancel()

	h.PublishSample(1, &model.TraceResult{TargetID: 1, Host: "example.net"})

	select {
	case ev := <-ch:
		assert.Equal(t, EventSample, ev.Type)
		assert.Equal(t, int64(1), ev.TargetID)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}

func TestHub_NoSubscribersIsFine(t *testing.T) {
	h := NewHub()
	h.PublishAlert(7, &model.AlertEvent{TargetID: 7, Kind: model.AlertTriggered})
	assert.Equal(t, 0, h.SubscriberCount(7))
}

func TestHub_TargetIsolation(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe(1, 4)
	defer cancel1()
	ch2, cancel2 := h.Subscribe(2, 4)
	defer cancel2()

	h.PublishRouteChange(1, &model.RouteChange{TargetID: 1})

	assert.Len(t, ch1, 1)
	assert.Len(t, ch2, 0)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1, 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.PublishSample(1, &model.TraceResult{TargetID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1, "overflow events dropped")
}

func TestHub_CancelRemovesSubscription(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1, 4)
	require.Equal(t, 1, h.SubscriberCount(1))

	cancel()
	cancel() // idempotent
	assert.Equal(t, 0, h.SubscriberCount(1))

	_, open := <-ch
	assert.False(t, open, "channel closed on cancel")
}
