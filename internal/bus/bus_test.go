package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"main/internal/adapter/enum"
)

func TestQueueTryPublish(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.TryPublish(Event{Type: enum.EventOrders}))
	require.NoError(t, q.TryPublish(Event{Type: enum.EventPositions}))
	require.ErrorIs(t, q.TryPublish(Event{Type: enum.EventAccount}), ErrQueueFull)

	e := <-q.C()
	require.Equal(t, enum.EventOrders, e.Type)

	q.Close()
	require.ErrorIs(t, q.TryPublish(Event{}), ErrQueueClosed)
	q.Close() // idempotent
}

func TestQueueRun(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.TryPublish(Event{Type: enum.EventOrders}))
	require.NoError(t, q.TryPublish(Event{Type: enum.EventAccount}))
	q.Close()

	var got []enum.EventType
	q.Run(context.Background(), func(e Event) {
		got = append(got, e.Type)
	})
	require.Equal(t, []enum.EventType{enum.EventOrders, enum.EventAccount}, got)
}

func TestQueueRunCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(Event) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestQueuePublishRacingClose(t *testing.T) {
	q := NewQueue(1)

	started := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		close(started)
		for i := 0; i < 1000; i++ {
			_ = q.TryPublish(Event{Type: enum.EventOrders})
		}
	}()

	<-started
	q.Close()
	<-finished

	require.ErrorIs(t, q.TryPublish(Event{}), ErrQueueClosed)
}

func TestHubFanout(t *testing.T) {
	h := NewHub()
	idA, qa := h.Register(4)
	_, qb := h.Register(4)

	h.Publish(Event{Type: enum.EventOrders, Venue: enum.VenueHyper})

	ea := <-qa.C()
	eb := <-qb.C()
	require.Equal(t, enum.EventOrders, ea.Type)
	require.Equal(t, enum.VenueHyper, eb.Venue)

	h.Unregister(idA)
	select {
	case <-qa.Done():
	case <-time.After(time.Second):
		t.Fatal("unregistered queue was not marked closed")
	}

	// delivery to remaining subscriber still works
	h.Publish(Event{Type: enum.EventAccount})
	eb = <-qb.C()
	require.Equal(t, enum.EventAccount, eb.Type)
}

func TestHubDropsOnFullSubscriber(t *testing.T) {
	h := NewHub()
	_, q := h.Register(1)

	h.Publish(Event{Type: enum.EventOrders})
	h.Publish(Event{Type: enum.EventPositions})
	require.Equal(t, uint64(1), h.Drops())

	e := <-q.C()
	require.Equal(t, enum.EventOrders, e.Type, "oldest event is kept, newest dropped")
}
