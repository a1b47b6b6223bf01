// Package playlist is the minimal in-memory playlist handle the streamer
// queries: an ordered slice of items plus a current-index cursor. Editing
// UIs and persistence live elsewhere; the streamer only selects and
// advances.
package playlist

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/arung-agamani/soundhost/internal/model"
)

// ErrEmpty is returned by operations that need at least one item.
var ErrEmpty = errors.New("playlist: empty")

// ErrOutOfRange is returned when an index is outside [0, Count()).
var ErrOutOfRange = errors.New("playlist: index out of range")

// AdvancePolicy describes how Advance should pick the next item.
type AdvancePolicy int

const (
	// AdvanceSequential moves to the next item in order, wrapping at the end.
	AdvanceSequential AdvancePolicy = iota
	// AdvanceRandom jumps to a uniformly random item.
	AdvanceRandom
)

// List is an ordered, mutex-guarded sequence of PlayItems with a
// current-position cursor. It is the sole concrete implementation of the
// playlist handle the streamer talks to.
type List struct {
	mu      sync.RWMutex
	Name    string
	items   []*model.PlayItem
	current int
}

// New creates an empty named playlist.
func New(name string) *List {
	return &List{Name: name, items: make([]*model.PlayItem, 0)}
}

// Count returns the number of items in the playlist.
func (l *List) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Items returns a shallow copy of the playlist's items, in order.
func (l *List) Items() []*model.PlayItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*model.PlayItem, len(l.items))
	copy(out, l.items)
	return out
}

// Current returns the item at the cursor, or ErrEmpty if the playlist is
// empty. It does not move the cursor.
func (l *List) Current() (*model.PlayItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.items) == 0 {
		return nil, ErrEmpty
	}
	return l.items[l.current], nil
}

// Advance moves the cursor according to policy and returns the item it lands
// on. This is what the transport's next/track-changed handling calls.
func (l *List) Advance(policy AdvancePolicy) (*model.PlayItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil, ErrEmpty
	}
	switch policy {
	case AdvanceRandom:
		l.current = rand.IntN(len(l.items))
	default:
		l.current = (l.current + 1) % len(l.items)
	}
	return l.items[l.current], nil
}

// Previous moves the cursor one step back, wrapping at the start.
func (l *List) Previous() (*model.PlayItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil, ErrEmpty
	}
	l.current = (l.current - 1 + len(l.items)) % len(l.items)
	return l.items[l.current], nil
}

// SelectRandom moves the cursor to a uniformly random item and returns it.
func (l *List) SelectRandom() (*model.PlayItem, error) {
	return l.Advance(AdvanceRandom)
}

// Seek moves the cursor directly to index and returns the item there.
func (l *List) Seek(index int) (*model.PlayItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.items) {
		return nil, ErrOutOfRange
	}
	l.current = index
	return l.items[index], nil
}

// Add appends items to the end of the playlist.
func (l *List) Add(items ...*model.PlayItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, items...)
}

// Remove deletes the item at index. The cursor is clamped back into range if
// the removal left it pointing past the end.
func (l *List) Remove(index int) (*model.PlayItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.items) {
		return nil, ErrOutOfRange
	}
	removed := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	if l.current >= len(l.items) && len(l.items) > 0 {
		l.current = len(l.items) - 1
	}
	return removed, nil
}

// Clear empties the playlist and resets the cursor.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = l.items[:0]
	l.current = 0
}
