package event

import (
	"time"

	"github.com/arung-agamani/soundhost/internal/model"
)

// Event is the payload dispatched to subscribers. SongStarted and
// SongFinished carry the current PlayItem; its pointer is only valid for
// the duration of the dispatch call and must not be retained.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Item      *model.PlayItem
}

// Callback is invoked synchronously on the emitting goroutine for every
// active subscriber of an event's kind, in subscription order.
type Callback func(ev Event, data any)
