package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/progression-engine/internal/models"
)

func TestMemoryBusDeliversToCandidate(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine, err := bus.Subscribe(ctx, "cand-1")
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, "cand-2")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, models.ProgressEvent{
		Type: models.EventTaskCompleted, CandidateID: "cand-1", TaskID: "t1",
	}))

	select {
	case ev := <-mine:
		assert.Equal(t, "t1", ev.TaskID)
		assert.Equal(t, models.EventTaskCompleted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-other:
		t.Fatalf("unexpected event for other candidate: %+v", ev)
	default:
	}
}

func TestMemoryBusUnsubscribeOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "cand")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// Publishing after unsubscribe is harmless
	require.NoError(t, bus.Publish(context.Background(), models.ProgressEvent{CandidateID: "cand"}))
}

func TestMemoryBusDropsWhenFull(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "cand")
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, bus.Publish(ctx, models.ProgressEvent{CandidateID: "cand"}))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus()
	ch, err := bus.Subscribe(context.Background(), "cand")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	late, err := bus.Subscribe(context.Background(), "cand")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "progress:abc", Channel("abc"))
}
