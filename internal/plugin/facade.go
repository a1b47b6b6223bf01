package plugin

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/decoder/cuesheet"
	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/playlist"
	"github.com/arung-agamani/soundhost/internal/transport"
)

// MD5Func hashes data. The core never implements hashing itself;
// cmd/soundhost injects crypto/md5.Sum by default.
type MD5Func func(data []byte) [16]byte

// Facade is the function table exported to plugins at load time: event
// subscribe/unsubscribe, transport commands, playlist accessors, volume,
// and threading primitives, all funnelled through methods re-entrant-safe
// with respect to the bus and registry.
type Facade struct {
	bus  *event.Bus
	loop *transport.Loop
	pl   *playlist.List
	md5  MD5Func

	volumeDBBits atomic.Uint64 // math.Float64bits of the current dB volume

	posMu sync.Mutex
	pos   PositionSource
}

// PositionSource is the slice of the streamer the façade's position
// accessors need. Bound late via BindPosition because the streamer is
// constructed after the façade.
type PositionSource interface {
	GetPlayPos() float64
	SetSeek(t float64)
	CurrentItem() *model.PlayItem
}

// NewFacade builds a host façade wired to bus, loop and pl. md5Func
// defaults to a zero-value implementation if nil; cmd/soundhost normally
// supplies crypto/md5.Sum.
func NewFacade(bus *event.Bus, loop *transport.Loop, pl *playlist.List, md5Func MD5Func) *Facade {
	f := &Facade{bus: bus, loop: loop, pl: pl, md5: md5Func}
	f.volumeDBBits.Store(math.Float64bits(0))
	return f
}

// --- Events ---------------------------------------------------------------

// Subscribe registers callback for events of kind on behalf of pluginID.
func (f *Facade) Subscribe(pluginID string, kind event.Kind, callback event.Callback, data any) error {
	return f.bus.Subscribe(pluginID, kind, callback, data)
}

// Unsubscribe removes the first matching subscription.
func (f *Facade) Unsubscribe(pluginID string, kind event.Kind, callback event.Callback, data any) {
	f.bus.Unsubscribe(pluginID, kind, callback, data)
}

// --- MD5 --------------------------------------------------------------

// MD5 hashes data via the injected MD5Func.
func (f *Facade) MD5(data []byte) [16]byte {
	if f.md5 == nil {
		return [16]byte{}
	}
	return f.md5(data)
}

// --- Transport ----------------------------------------------------------

func (f *Facade) Play() error        { return f.loop.Post(transport.PlaySong) }
func (f *Facade) Stop() error        { return f.loop.Post(transport.StopSong) }
func (f *Facade) Pause() error       { return f.loop.Post(transport.PauseSong) }
func (f *Facade) Next() error        { return f.loop.Post(transport.NextSong) }
func (f *Facade) Prev() error        { return f.loop.Post(transport.PrevSong) }
func (f *Facade) Random() error      { return f.loop.Post(transport.PlayRandom) }
func (f *Facade) Quit() error        { return f.loop.Post(transport.Terminate) }

// --- Position -------------------------------------------------------------

// BindPosition attaches the playback-position source (the streamer).
func (f *Facade) BindPosition(src PositionSource) {
	f.posMu.Lock()
	defer f.posMu.Unlock()
	f.pos = src
}

func (f *Facade) position() PositionSource {
	f.posMu.Lock()
	defer f.posMu.Unlock()
	return f.pos
}

// PositionPercent returns the playback position as a percentage of the
// current item's duration, or 0 when nothing is playing.
func (f *Facade) PositionPercent() float64 {
	src := f.position()
	if src == nil {
		return 0
	}
	item := src.CurrentItem()
	if item == nil {
		return 0
	}
	dur := item.DurationSeconds()
	if dur <= 0 {
		return 0
	}
	pct := src.GetPlayPos() / dur * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// SetPositionPercent records a seek to pct percent of the current item's
// duration, applied on the streamer's next decode tick.
func (f *Facade) SetPositionPercent(pct float64) error {
	src := f.position()
	if src == nil {
		return fmt.Errorf("facade: no position source bound")
	}
	item := src.CurrentItem()
	if item == nil {
		return fmt.Errorf("facade: nothing playing")
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	src.SetSeek(pct / 100 * item.DurationSeconds())
	return nil
}

// --- Playlist -------------------------------------------------------------

// InsertFromFile probes locator with plug and appends every resulting
// PlayItem to the playlist, returning them.
func (f *Facade) InsertFromFile(plug decoder.Plugin, locator string) ([]*model.PlayItem, error) {
	items, err := plug.Insert(nil, locator)
	if err != nil {
		return nil, fmt.Errorf("facade: insert %s: %w", locator, err)
	}
	f.pl.Add(items...)
	return items, nil
}

// PlaylistCurrent returns the item the playlist cursor currently points at.
func (f *Facade) PlaylistCurrent() (*model.PlayItem, error) {
	return f.pl.Current()
}

// PlaylistCount returns the number of items in the playlist.
func (f *Facade) PlaylistCount() int {
	return f.pl.Count()
}

// ItemAlloc allocates a whole-file PlayItem without inserting it anywhere.
func (f *Facade) ItemAlloc(locator, decoderID, fileType string, totalSamples int64, wf model.WaveFormat) *model.PlayItem {
	return model.NewPlayItem(locator, decoderID, fileType, totalSamples, wf)
}

// ItemCopy duplicates an item (fresh id, same range and metadata).
func (f *Facade) ItemCopy(it *model.PlayItem) *model.PlayItem {
	return it.WithRange(it.StartSample, it.EndSample)
}

// ItemAddMeta sets a metadata value on it.
func (f *Facade) ItemAddMeta(it *model.PlayItem, key, value string) {
	it.SetMeta(key, value)
}

// ItemFindMeta looks up a metadata value on it.
func (f *Facade) ItemFindMeta(it *model.PlayItem, key string) (string, bool) {
	return it.Meta(key)
}

// InsertCuesheetFromFile parses the cue sheet at cuePath, slices audioItem
// into per-track sub-range items, and appends them to the playlist.
// audioItem itself is not inserted.
func (f *Facade) InsertCuesheetFromFile(cuePath string, audioItem *model.PlayItem) ([]*model.PlayItem, error) {
	data, err := os.ReadFile(cuePath)
	if err != nil {
		return nil, fmt.Errorf("facade: read cuesheet %s: %w", cuePath, err)
	}
	return f.InsertCuesheetFromBuffer(data, audioItem)
}

// InsertCuesheetFromBuffer is InsertCuesheetFromFile for an embedded
// cuesheet already held in memory (e.g. a FLAC CUESHEET block).
func (f *Facade) InsertCuesheetFromBuffer(data []byte, audioItem *model.PlayItem) ([]*model.PlayItem, error) {
	sheet, err := cuesheet.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("facade: parse cuesheet: %w", err)
	}
	items := sheet.BuildPlayItems(audioItem.Locator, audioItem.DecoderID, audioItem.FileType, audioItem.TotalSamples, audioItem.Format())
	f.pl.Add(items...)
	return items, nil
}

// --- Volume -----------------------------------------------------------

// VolumeDB returns the current volume in decibels (0 dB = unity gain).
func (f *Facade) VolumeDB() float64 {
	return math.Float64frombits(f.volumeDBBits.Load())
}

// SetVolumeDB sets the volume in decibels.
func (f *Facade) SetVolumeDB(db float64) {
	f.volumeDBBits.Store(math.Float64bits(db))
	if f.bus != nil {
		f.bus.Emit(event.Event{Kind: event.VolumeChanged})
	}
}

// VolumeLinear returns the current volume as a linear amplitude multiplier.
func (f *Facade) VolumeLinear() float64 {
	return math.Pow(10, f.VolumeDB()/20)
}

// SetVolumeLinear sets the volume from a linear amplitude multiplier.
func (f *Facade) SetVolumeLinear(amp float64) {
	if amp <= 0 {
		f.SetVolumeDB(math.Inf(-1))
		return
	}
	f.SetVolumeDB(20 * math.Log10(amp))
}

// --- Threading primitives -----------------------------------------------

// ThreadHandle is the façade's thread-start/join primitive. Goroutines
// need no allocation ceremony; this exists only so plugins written against
// the façade have a join point.
type ThreadHandle struct {
	done chan struct{}
}

// ThreadStart runs fn on a new goroutine and returns a handle to join it.
func (f *Facade) ThreadStart(fn func()) *ThreadHandle {
	h := &ThreadHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		fn()
	}()
	return h
}

// ThreadJoin blocks until the goroutine started by ThreadStart returns.
func (f *Facade) ThreadJoin(h *ThreadHandle) {
	<-h.done
}

// MutexCreate returns a new mutex. Free is a no-op: the garbage collector
// reclaims it once unreferenced.
func (f *Facade) MutexCreate() *sync.Mutex  { return &sync.Mutex{} }
func (f *Facade) MutexFree(*sync.Mutex)     {}
func (f *Facade) MutexLock(m *sync.Mutex)   { m.Lock() }
func (f *Facade) MutexUnlock(m *sync.Mutex) { m.Unlock() }

// CondCreate returns a new condition variable bound to a fresh mutex.
func (f *Facade) CondCreate() *sync.Cond { return sync.NewCond(&sync.Mutex{}) }
func (f *Facade) CondFree(*sync.Cond)    {}
func (f *Facade) CondWait(c *sync.Cond)  { c.Wait() }
func (f *Facade) CondSignal(c *sync.Cond)    { c.Signal() }
func (f *Facade) CondBroadcast(c *sync.Cond) { c.Broadcast() }
