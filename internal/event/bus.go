package event

import (
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrSubscriberTableFull is returned when a kind's subscriber capacity
// (MaxHandlersPerKind) would be exceeded.
var ErrSubscriberTableFull = errors.New("event: subscriber table full")

// MaxHandlersPerKind bounds how many subscribers a single event kind may
// carry.
const MaxHandlersPerKind = 100

type subscriber struct {
	id       uuid.UUID
	pluginID string
	callback Callback
	data     any
	removed  atomic.Bool
}

func (s *subscriber) matches(pluginID string, callback Callback, data any) bool {
	if s.pluginID != pluginID {
		return false
	}
	if s.callback == nil || callback == nil {
		return false
	}
	if reflect.ValueOf(s.callback).Pointer() != reflect.ValueOf(callback).Pointer() {
		return false
	}
	return s.data == data
}

// Bus is a topic-indexed, synchronous subscription table. It is safe for
// concurrent use from any goroutine, including recursively from within a
// dispatched callback.
type Bus struct {
	mu     sync.RWMutex
	subs   [kindCount][]*subscriber
	onEmit func(Kind)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// SetEmitHook installs fn to be called once per Emit, after dispatch, with
// the event's kind. Used by cmd/soundhost to feed the metrics package
// without the event package depending on it.
func (b *Bus) SetEmitHook(fn func(Kind)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEmit = fn
}

// Subscribe appends a new subscriber for kind. Returns ErrSubscriberTableFull
// if the kind is already at capacity.
func (b *Bus) Subscribe(pluginID string, kind Kind, callback Callback, data any) error {
	if kind < 0 || kind >= kindCount {
		return errors.New("event: unknown kind")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs[kind]) >= MaxHandlersPerKind {
		slog.Warn("event: subscriber table full", "kind", kind, "plugin", pluginID)
		return ErrSubscriberTableFull
	}

	b.subs[kind] = append(b.subs[kind], &subscriber{
		id:       uuid.New(),
		pluginID: pluginID,
		callback: callback,
		data:     data,
	})
	return nil
}

// Unsubscribe removes the first subscriber matching (pluginID, kind,
// callback, data). If an Emit of this kind is currently in flight and has not
// yet visited this subscriber, it will be skipped; if already visited, it
// still received the in-flight event.
func (b *Bus) Unsubscribe(pluginID string, kind Kind, callback Callback, data any) {
	if kind < 0 || kind >= kindCount {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[kind]
	for i, s := range subs {
		if s.matches(pluginID, callback, data) {
			s.removed.Store(true)
			next := make([]*subscriber, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.subs[kind] = next
			return
		}
	}
}

// UnsubscribeAll removes every subscriber registered by pluginID, used when a
// plugin is stopped or unloaded.
func (b *Bus) UnsubscribeAll(pluginID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k := range b.subs {
		subs := b.subs[k]
		kept := subs[:0:0]
		for _, s := range subs {
			if s.pluginID == pluginID {
				s.removed.Store(true)
				continue
			}
			kept = append(kept, s)
		}
		b.subs[k] = kept
	}
}

// Emit dispatches ev synchronously on the calling goroutine to every
// subscriber of ev.Kind that was registered (and not yet removed) at the
// moment dispatch reaches it, in subscription order. Subscribers added
// during this call do not receive ev; subscribers removed during this call
// are skipped only if Emit has not yet reached them.
func (b *Bus) Emit(ev Event) {
	if ev.Kind < 0 || ev.Kind >= kindCount {
		return
	}

	b.mu.RLock()
	live := b.subs[ev.Kind]
	snapshot := make([]*subscriber, len(live))
	copy(snapshot, live)
	b.mu.RUnlock()

	for _, s := range snapshot {
		if s.removed.Load() {
			continue
		}
		s.callback(ev, s.data)
	}

	b.mu.RLock()
	hook := b.onEmit
	b.mu.RUnlock()
	if hook != nil {
		hook(ev.Kind)
	}
}

// Count returns the number of currently active subscribers for kind, for
// introspection and tests.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if kind < 0 || kind >= kindCount {
		return 0
	}
	return len(b.subs[kind])
}
