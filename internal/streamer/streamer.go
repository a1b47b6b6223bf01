// Package streamer is the broker between decoder and sink: it owns the
// currently playing decoder instance, exposes the non-blocking
// OkToRead/Read/GetPlayPos/SetSeek/CurrentFormat contract a sink consumes,
// and applies play/next/prev/random transport commands by installing a
// fresh decoder instance and emitting SongStarted/SongFinished on the
// event bus. A single dedicated decode goroutine, started by Start(ctx),
// refills an internal PCM ring under the streamer's mutex.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/playlist"
)

// Policy selects how the streamer advances when a track ends.
type Policy int32

const (
	PolicyNormal Policy = iota // play the playlist in order, wrapping
	PolicyRandom               // jump to a random item
	PolicySingle               // stop after the current item
)

// ErrNoDecoder is returned when no registered decoder claims a PlayItem's
// DecoderID.
var ErrNoDecoder = errors.New("streamer: no decoder for item")

// ErrNothingPlaying is returned by commands that need an active track when
// none is loaded.
var ErrNothingPlaying = errors.New("streamer: nothing playing")

const decodeTick = 5 * time.Millisecond

// Streamer pulls PCM from the current decoder, tracks playback position,
// honours seeks, and feeds the sink.
type Streamer struct {
	playlist *playlist.List
	decoders map[string]decoder.Plugin
	bus      *event.Bus

	blockSize int
	ring      *ring

	mu   sync.Mutex
	inst *decoder.Instance
	plug decoder.Plugin
	item atomic.Value // *model.PlayItem; the playlist stays the owner

	format      atomic.Value // model.WaveFormat
	playPosBits atomic.Uint64
	seekTo      atomic.Pointer[float64]
	policy      atomic.Int32

	onOccupancy        func(int)
	onFormatChange     func(model.WaveFormat)
	lastNotifiedFormat model.WaveFormat
	haveNotifiedFormat bool
}

// SetFormatChangeHook installs fn to be called with the new WaveFormat
// whenever openTrack installs a track whose format differs from the last
// one notified (always for the first track), whether reached via an
// explicit transport command or the decode goroutine's own end-of-track
// advance.
// cmd/soundhost wires this directly to sink.Sink.SetFormat so a format
// change is never missed just because advancement happened off the
// command loop.
func (s *Streamer) SetFormatChangeHook(fn func(model.WaveFormat)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFormatChange = fn
}

// SetOccupancyHook installs fn to be called after every decode tick with the
// ring's current occupancy in bytes. Used by cmd/soundhost to feed the
// metrics package.
func (s *Streamer) SetOccupancyHook(fn func(int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOccupancy = fn
}

// New creates a Streamer pulling items from pl and decoding them with one of
// decoders (keyed by decoder id), emitting lifecycle events on bus.
// ringCapacity and blockSize default to 64KiB/8KiB when <= 0.
func New(pl *playlist.List, decoders map[string]decoder.Plugin, bus *event.Bus, ringCapacity, blockSize int) *Streamer {
	if ringCapacity <= 0 {
		ringCapacity = 64 * 1024
	}
	if blockSize <= 0 {
		blockSize = 8192
	}
	s := &Streamer{
		playlist:  pl,
		decoders:  decoders,
		bus:       bus,
		blockSize: blockSize,
		ring:      newRing(ringCapacity),
	}
	s.format.Store(model.WaveFormat{})
	s.item.Store((*model.PlayItem)(nil))
	return s
}

// SetPolicy changes the track-advance policy.
func (s *Streamer) SetPolicy(p Policy) { s.policy.Store(int32(p)) }

// Policy returns the current track-advance policy.
func (s *Streamer) Policy() Policy { return Policy(s.policy.Load()) }

// CurrentItem returns the PlayItem currently installed, or nil.
func (s *Streamer) CurrentItem() *model.PlayItem {
	return s.item.Load().(*model.PlayItem)
}

// CurrentFormat implements sink.Source.
func (s *Streamer) CurrentFormat() model.WaveFormat {
	return s.format.Load().(model.WaveFormat)
}

// OkToRead implements sink.Source: true when the ring holds enough data for
// at least one sample frame.
func (s *Streamer) OkToRead(hint int) bool {
	wfmt := s.CurrentFormat()
	bpf := wfmt.BytesPerFrame()
	if bpf == 0 {
		return false
	}
	return s.ring.Occupancy() >= bpf
}

// Read implements sink.Source: a non-blocking drain of the internal ring.
func (s *Streamer) Read(buf []byte) (int, error) {
	n := s.ring.Read(buf)
	return n, nil
}

// GetPlayPos returns the current playback position in seconds.
func (s *Streamer) GetPlayPos() float64 {
	return math.Float64frombits(s.playPosBits.Load())
}

// SetSeek records a pending seek to t seconds; it is applied by the decode
// goroutine on its next tick.
func (s *Streamer) SetSeek(t float64) {
	s.seekTo.Store(&t)
}

// Play starts playback from the playlist's current item if nothing is
// loaded yet; it is a no-op if a track is already installed (pause/unpause
// is a sink-level concern, not a streamer one).
func (s *Streamer) Play() error {
	s.mu.Lock()
	loaded := s.inst != nil
	s.mu.Unlock()
	if loaded {
		return nil
	}
	item, err := s.playlist.Current()
	if err != nil {
		return fmt.Errorf("streamer: play: %w", err)
	}
	return s.openTrack(item)
}

// Next tears down the current track and installs the playlist's next item.
func (s *Streamer) Next() error {
	item, err := s.playlist.Advance(playlist.AdvanceSequential)
	if err != nil {
		return fmt.Errorf("streamer: next: %w", err)
	}
	return s.openTrack(item)
}

// Prev tears down the current track and installs the playlist's previous
// item.
func (s *Streamer) Prev() error {
	item, err := s.playlist.Previous()
	if err != nil {
		return fmt.Errorf("streamer: prev: %w", err)
	}
	return s.openTrack(item)
}

// Random tears down the current track and installs a uniformly random
// playlist item.
func (s *Streamer) Random() error {
	item, err := s.playlist.SelectRandom()
	if err != nil {
		return fmt.Errorf("streamer: random: %w", err)
	}
	return s.openTrack(item)
}

// Stop tears down the current DecoderInstance and clears the ring. It does
// not touch the sink; that is the command loop's job.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownUnsafe()
	return nil
}

// teardownUnsafe frees the current instance, if any. Caller must hold s.mu.
func (s *Streamer) teardownUnsafe() {
	if s.inst != nil && s.plug != nil {
		s.plug.Free(s.inst)
	}
	s.inst = nil
	s.plug = nil
	s.item.Store((*model.PlayItem)(nil))
	s.ring.Reset()
}

// openTrack installs item as the currently playing track: frees any
// existing instance, opens and inits a fresh one, and emits SongStarted
// before returning, so the instance is installed before the first
// non-zero read can succeed.
func (s *Streamer) openTrack(item *model.PlayItem) error {
	plug, ok := s.decoders[item.DecoderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDecoder, item.DecoderID)
	}

	inst := plug.Open()
	if err := plug.Init(inst, item); err != nil {
		return fmt.Errorf("streamer: init: %w", err)
	}

	s.mu.Lock()
	s.teardownUnsafe()
	s.inst = inst
	s.plug = plug
	formatChanged := !s.lastNotifiedFormat.Equal(inst.Format) || !s.haveNotifiedFormat
	s.lastNotifiedFormat = inst.Format
	s.haveNotifiedFormat = true
	hook := s.onFormatChange
	s.mu.Unlock()

	s.item.Store(item)
	s.format.Store(inst.Format)
	s.playPosBits.Store(math.Float64bits(0))

	if hook != nil && formatChanged {
		hook(inst.Format)
	}

	if s.bus != nil {
		s.bus.Emit(event.Event{Kind: event.SongStarted, Timestamp: time.Now(), Item: item})
	}
	return nil
}

// Start runs the decode goroutine until ctx is cancelled, refilling the PCM
// ring and applying pending seeks and end-of-track advancement.
func (s *Streamer) Start(ctx context.Context) {
	slog.Info("streamer: decode loop started")
	ticker := time.NewTicker(decodeTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("streamer: decode loop stopping")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Streamer) tick() {
	defer s.reportOccupancy()

	s.mu.Lock()

	if s.inst == nil || s.plug == nil {
		s.mu.Unlock()
		return
	}

	if seek := s.seekTo.Swap(nil); seek != nil {
		if err := s.plug.Seek(s.inst, *seek); err != nil {
			slog.Warn("streamer: seek failed", "error", err)
		} else {
			s.ring.Reset()
			s.playPosBits.Store(math.Float64bits(s.inst.ReadPos))
		}
	}

	if s.ring.Free() < s.blockSize {
		s.mu.Unlock()
		return
	}

	chunk := make([]byte, s.blockSize)
	n, err := s.plug.Read(s.inst, chunk)
	if err != nil {
		slog.Error("streamer: decode error, ending track", "error", err)
		n = 0
	}
	if n == 0 {
		finished := s.item.Load().(*model.PlayItem)
		s.teardownUnsafe()
		s.mu.Unlock()
		s.handleTrackEnd(finished)
		return
	}

	s.ring.Write(chunk[:n])
	s.playPosBits.Store(math.Float64bits(s.inst.ReadPos))
	s.mu.Unlock()
}

// handleTrackEnd emits SongFinished for the item that just ended and
// advances to the next track per the current policy. Called with no lock
// held, since it may call openTrack (which locks internally).
func (s *Streamer) handleTrackEnd(finished *model.PlayItem) {
	if s.bus != nil && finished != nil {
		s.bus.Emit(event.Event{Kind: event.SongFinished, Timestamp: time.Now(), Item: finished})
	}

	if Policy(s.policy.Load()) == PolicySingle {
		s.emitStopped()
		return
	}

	var next *model.PlayItem
	var err error
	if Policy(s.policy.Load()) == PolicyRandom {
		next, err = s.playlist.SelectRandom()
	} else {
		next, err = s.playlist.Advance(playlist.AdvanceSequential)
	}
	if err != nil {
		s.emitStopped()
		return
	}

	if openErr := s.openTrack(next); openErr != nil {
		slog.Error("streamer: failed to open next track", "error", openErr)
		s.emitStopped()
	}
}

func (s *Streamer) emitStopped() {
	if s.bus != nil {
		s.bus.Emit(event.Event{Kind: event.Stopped, Timestamp: time.Now()})
	}
}

// reportOccupancy invokes the occupancy hook, if any, with the ring's
// current byte count.
func (s *Streamer) reportOccupancy() {
	s.mu.Lock()
	hook := s.onOccupancy
	s.mu.Unlock()
	if hook != nil {
		hook(s.ring.Occupancy())
	}
}
