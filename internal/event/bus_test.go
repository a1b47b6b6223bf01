package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/soundhost/internal/event"
)

func TestBus_EmitDispatchesInSubscriptionOrder(t *testing.T) {
	b := event.NewBus()
	var order []string

	require.NoError(t, b.Subscribe("p1", event.SongStarted, func(ev event.Event, data any) {
		order = append(order, data.(string))
	}, "first"))
	require.NoError(t, b.Subscribe("p2", event.SongStarted, func(ev event.Event, data any) {
		order = append(order, data.(string))
	}, "second"))

	b.Emit(event.Event{Kind: event.SongStarted})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBus_UnrelatedKindsDoNotDispatch(t *testing.T) {
	b := event.NewBus()
	called := false
	require.NoError(t, b.Subscribe("p1", event.SongStarted, func(ev event.Event, data any) {
		called = true
	}, nil))

	b.Emit(event.Event{Kind: event.SongFinished})

	assert.False(t, called)
}

func TestBus_UnsubscribeDuringDispatchSkipsLaterSubscriber(t *testing.T) {
	b := event.NewBus()
	var fired []string

	var second event.Callback
	second = func(ev event.Event, data any) {
		fired = append(fired, "second")
	}
	require.NoError(t, b.Subscribe("p1", event.SongStarted, func(ev event.Event, data any) {
		fired = append(fired, "first")
		b.Unsubscribe("p2", event.SongStarted, second, nil)
	}, nil))
	require.NoError(t, b.Subscribe("p2", event.SongStarted, second, nil))

	b.Emit(event.Event{Kind: event.SongStarted})

	assert.Equal(t, []string{"first"}, fired, "unsubscribing ahead of dispatch must skip the removed subscriber")
	assert.Equal(t, 1, b.Count(event.SongStarted), "only the second subscriber was removed; the first stays subscribed")
}

func TestBus_UnsubscribeAllRemovesOnlyThatPlugin(t *testing.T) {
	b := event.NewBus()
	require.NoError(t, b.Subscribe("p1", event.Paused, func(event.Event, any) {}, nil))
	require.NoError(t, b.Subscribe("p2", event.Paused, func(event.Event, any) {}, nil))

	b.UnsubscribeAll("p1")

	assert.Equal(t, 1, b.Count(event.Paused))
}

func TestBus_SubscribeRejectsUnknownKind(t *testing.T) {
	b := event.NewBus()
	err := b.Subscribe("p1", event.Kind(999), func(event.Event, any) {}, nil)
	assert.Error(t, err)
}

func TestBus_SubscribeTableFullReturnsError(t *testing.T) {
	b := event.NewBus()
	for i := 0; i < event.MaxHandlersPerKind; i++ {
		require.NoError(t, b.Subscribe("p", event.Stopped, func(event.Event, any) {}, nil))
	}
	err := b.Subscribe("p", event.Stopped, func(event.Event, any) {}, nil)
	assert.ErrorIs(t, err, event.ErrSubscriberTableFull)
}

func TestBus_SetEmitHookFiresAfterDispatch(t *testing.T) {
	b := event.NewBus()
	var hookKind event.Kind = -1
	dispatched := false
	b.SetEmitHook(func(k event.Kind) { hookKind = k })
	require.NoError(t, b.Subscribe("p1", event.Unpaused, func(event.Event, any) {
		dispatched = true
	}, nil))

	b.Emit(event.Event{Kind: event.Unpaused})

	assert.True(t, dispatched)
	assert.Equal(t, event.Unpaused, hookKind)
}
