package transport

import (
	"context"
	"log/slog"

	"github.com/arung-agamani/soundhost/internal/sink"
	"github.com/arung-agamani/soundhost/internal/streamer"
)

// DefaultQueueCapacity is the default buffered-channel capacity.
const DefaultQueueCapacity = 64

// Loop is the single consumer applying Commands to the streamer and sink,
// FIFO, with no reordering of intervening event emissions across
// commands. Format propagation to the sink is not this
// loop's job: cmd/soundhost wires streamer.SetFormatChangeHook directly to
// sink.SetFormat, so a format change reaches the sink whether the track
// change was commanded here or happened off-loop on end-of-track advance.
type Loop struct {
	ch       chan Command
	streamer *streamer.Streamer
	sink     *sink.Sink
}

// NewLoop creates a command loop with the given channel capacity
// (DefaultQueueCapacity when <= 0) driving streamer s and sink sk.
func NewLoop(capacity int, s *streamer.Streamer, sk *sink.Sink) *Loop {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Loop{
		ch:       make(chan Command, capacity),
		streamer: s,
		sink:     sk,
	}
}

// Bind attaches the streamer and sink a Loop constructed before they
// existed will drive. cmd/soundhost needs a Loop to build the host façade
// handed to plugins before the streamer and sink can be constructed (the
// sink needs the streamer as its Source); Bind resolves that ordering
// without requiring two Loop instances.
func (l *Loop) Bind(s *streamer.Streamer, sk *sink.Sink) {
	l.streamer = s
	l.sink = sk
}

// Post enqueues cmd without blocking, returning ErrMessageQueueFull if the
// buffer is saturated.
func (l *Loop) Post(cmd Command) error {
	select {
	case l.ch <- cmd:
		return nil
	default:
		return ErrMessageQueueFull
	}
}

// Run consumes commands FIFO until ctx is cancelled or a Terminate command
// is processed, whichever comes first.
func (l *Loop) Run(ctx context.Context) {
	slog.Info("transport: command loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("transport: command loop stopping (context cancelled)")
			return
		case cmd := <-l.ch:
			if !l.apply(cmd) {
				slog.Info("transport: command loop stopping (terminate)")
				return
			}
		}
	}
}

// apply performs one command; it returns false iff the loop should stop
// (Terminate).
func (l *Loop) apply(cmd Command) bool {
	slog.Debug("transport: applying command", "command", cmd)

	switch cmd {
	case PlaySong:
		if err := l.streamer.Play(); err != nil {
			slog.Warn("transport: play failed", "error", err)
			return true
		}
		if err := l.sink.Play(); err != nil {
			slog.Warn("transport: sink play failed", "error", err)
		}
	case StopSong:
		if err := l.streamer.Stop(); err != nil {
			slog.Warn("transport: stop failed", "error", err)
		}
		if err := l.sink.Stop(); err != nil {
			slog.Warn("transport: sink stop failed", "error", err)
		}
	case PauseSong:
		if err := l.sink.Pause(); err != nil {
			slog.Warn("transport: pause failed", "error", err)
		}
	case NextSong:
		if err := l.streamer.Next(); err != nil {
			slog.Warn("transport: next failed", "error", err)
			return true
		}
	case PrevSong:
		if err := l.streamer.Prev(); err != nil {
			slog.Warn("transport: prev failed", "error", err)
			return true
		}
	case PlayRandom:
		if err := l.streamer.Random(); err != nil {
			slog.Warn("transport: random failed", "error", err)
			return true
		}
		if err := l.sink.Play(); err != nil {
			slog.Warn("transport: sink play failed", "error", err)
		}
	case Terminate:
		return false
	}
	return true
}
