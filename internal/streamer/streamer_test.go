package streamer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/playlist"
)

// fakeDecoder is a minimal decoder.Plugin that hands out exactly the item's
// frames' worth of silence and then reports end-of-track, so tests can drive
// the streamer's tick loop deterministically without a real codec.
type fakeDecoder struct {
	mu        sync.Mutex
	remaining map[*decoder.Instance]int64
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{remaining: make(map[*decoder.Instance]int64)}
}

func (d *fakeDecoder) Header() model.PluginHeader {
	return model.PluginHeader{
		APIMajor: model.APIVersion.Major,
		Kind:     model.KindDecoder,
		ID:       "fake",
		Name:     "fake decoder",
	}
}

func (d *fakeDecoder) Extensions() []string { return []string{"fake"} }
func (d *fakeDecoder) FileTypes() []string  { return []string{"FAKE"} }

func (d *fakeDecoder) Open() *decoder.Instance { return &decoder.Instance{} }

func (d *fakeDecoder) Init(inst *decoder.Instance, item *model.PlayItem) error {
	inst.Item = item
	inst.Format = item.Format()
	inst.Start = item.StartSample
	inst.End = item.EndSample
	inst.Current = item.StartSample
	inst.ReadPos = 0

	bpf := inst.Format.BytesPerFrame()
	frames := inst.End - inst.Start + 1
	d.mu.Lock()
	d.remaining[inst] = frames * int64(bpf)
	d.mu.Unlock()
	return nil
}

func (d *fakeDecoder) Read(inst *decoder.Instance, buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rem := d.remaining[inst]
	if rem <= 0 {
		return 0, nil
	}
	n := int64(len(buf))
	if n > rem {
		n = rem
	}
	d.remaining[inst] = rem - n

	bpf := int64(inst.Format.BytesPerFrame())
	if bpf > 0 {
		inst.Current += n / bpf
		inst.ReadPos = float64(inst.Current-inst.Start) / float64(inst.Format.SampleRate)
	}
	return int(n), nil
}

func (d *fakeDecoder) SeekSample(inst *decoder.Instance, n int64) error {
	target := inst.Start + n
	if target < inst.Start {
		target = inst.Start
	}
	if target > inst.End {
		target = inst.End
	}
	inst.Current = target
	inst.ReadPos = float64(inst.Current-inst.Start) / float64(inst.Format.SampleRate)

	bpf := int64(inst.Format.BytesPerFrame())
	d.mu.Lock()
	d.remaining[inst] = (inst.End - inst.Current + 1) * bpf
	d.mu.Unlock()
	return nil
}

func (d *fakeDecoder) Seek(inst *decoder.Instance, t float64) error {
	return d.SeekSample(inst, int64(t*float64(inst.Format.SampleRate)))
}

func (d *fakeDecoder) Free(inst *decoder.Instance) {
	d.mu.Lock()
	delete(d.remaining, inst)
	d.mu.Unlock()
}

func (d *fakeDecoder) Insert(cursor *model.PlayItem, locator string) ([]*model.PlayItem, error) {
	return nil, nil
}

func fakeItem(locator string, fmt model.WaveFormat, samples int64) *model.PlayItem {
	return model.NewPlayItem(locator, "fake", "FAKE", samples, fmt)
}

func TestStreamer_PlayInstallsFirstItemAndEmitsSongStarted(t *testing.T) {
	bus := event.NewBus()
	var started []string
	require.NoError(t, bus.Subscribe("test", event.SongStarted, func(ev event.Event, data any) {
		started = append(started, ev.Item.Locator)
	}, nil))

	format := model.WaveFormat{SampleRate: 8, Channels: 1, BitsPerSample: 16}
	pl := playlist.New("p")
	pl.Add(fakeItem("a.fake", format, 8))

	dec := newFakeDecoder()
	s := New(pl, map[string]decoder.Plugin{"fake": dec}, bus, 64, 16)

	var notified []model.WaveFormat
	s.SetFormatChangeHook(func(f model.WaveFormat) { notified = append(notified, f) })

	require.NoError(t, s.Play())

	assert.Equal(t, []string{"a.fake"}, started)
	require.Len(t, notified, 1)
	assert.Equal(t, format, notified[0])
	assert.Equal(t, "a.fake", s.CurrentItem().Locator)

	// Play again while a track is already loaded is a no-op, not a reload.
	require.NoError(t, s.Play())
	assert.Len(t, started, 1)
}

func TestStreamer_TickDoesNotRenotifyFormatOnSameFormatAdvance(t *testing.T) {
	bus := event.NewBus()
	var finished []string
	require.NoError(t, bus.Subscribe("test", event.SongFinished, func(ev event.Event, data any) {
		finished = append(finished, ev.Item.Locator)
	}, nil))

	format := model.WaveFormat{SampleRate: 8, Channels: 1, BitsPerSample: 16}
	pl := playlist.New("p")
	pl.Add(fakeItem("a.fake", format, 8), fakeItem("b.fake", format, 8))

	dec := newFakeDecoder()
	s := New(pl, map[string]decoder.Plugin{"fake": dec}, bus, 64, 16)

	var notified []model.WaveFormat
	s.SetFormatChangeHook(func(f model.WaveFormat) { notified = append(notified, f) })

	require.NoError(t, s.Play())
	require.Len(t, notified, 1, "first track installs and notifies once")

	s.tick() // drains the one block of "a.fake"
	s.tick() // Read returns 0: ends "a.fake", advances to "b.fake"

	assert.Equal(t, []string{"a.fake"}, finished)
	assert.Equal(t, "b.fake", s.CurrentItem().Locator)
	assert.Len(t, notified, 1, "identical WaveFormat on auto-advance must not re-fire the hook")
}

func TestStreamer_TickRenotifiesOnFormatChange(t *testing.T) {
	bus := event.NewBus()
	formatA := model.WaveFormat{SampleRate: 8, Channels: 1, BitsPerSample: 16}
	formatB := model.WaveFormat{SampleRate: 8, Channels: 2, BitsPerSample: 16}

	pl := playlist.New("p")
	pl.Add(fakeItem("a.fake", formatA, 8), fakeItem("b.fake", formatB, 8))

	dec := newFakeDecoder()
	s := New(pl, map[string]decoder.Plugin{"fake": dec}, bus, 64, 16)

	var notified []model.WaveFormat
	s.SetFormatChangeHook(func(f model.WaveFormat) { notified = append(notified, f) })

	require.NoError(t, s.Play())
	s.tick()
	s.tick() // advances onto "b.fake", whose format differs

	require.Len(t, notified, 2)
	assert.Equal(t, formatA, notified[0])
	assert.Equal(t, formatB, notified[1])
}

func TestStreamer_OkToReadReflectsRingOccupancy(t *testing.T) {
	bus := event.NewBus()
	format := model.WaveFormat{SampleRate: 8, Channels: 1, BitsPerSample: 16}
	pl := playlist.New("p")
	pl.Add(fakeItem("a.fake", format, 8))

	dec := newFakeDecoder()
	s := New(pl, map[string]decoder.Plugin{"fake": dec}, bus, 64, 16)
	require.NoError(t, s.Play())

	assert.False(t, s.OkToRead(-1), "nothing decoded yet")
	s.tick()
	assert.True(t, s.OkToRead(-1))

	buf := make([]byte, 16)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.False(t, s.OkToRead(-1), "ring drained back to empty")
}

func TestStreamer_StopTearsDownAndResetsRing(t *testing.T) {
	bus := event.NewBus()
	format := model.WaveFormat{SampleRate: 8, Channels: 1, BitsPerSample: 16}
	pl := playlist.New("p")
	pl.Add(fakeItem("a.fake", format, 8))

	dec := newFakeDecoder()
	s := New(pl, map[string]decoder.Plugin{"fake": dec}, bus, 64, 16)
	require.NoError(t, s.Play())
	s.tick()

	require.NoError(t, s.Stop())

	assert.Nil(t, s.CurrentItem())
	assert.False(t, s.OkToRead(-1))
}
