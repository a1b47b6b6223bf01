package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/plugin"
	"github.com/arung-agamani/soundhost/internal/transport"
)

// fakePosition is a plugin.PositionSource with a scripted position and item.
type fakePosition struct {
	pos    float64
	seeked []float64
	item   *model.PlayItem
}

func (f *fakePosition) GetPlayPos() float64          { return f.pos }
func (f *fakePosition) SetSeek(t float64)            { f.seeked = append(f.seeked, t) }
func (f *fakePosition) CurrentItem() *model.PlayItem { return f.item }

func TestFacade_PositionPercentRoundTrip(t *testing.T) {
	facade, _ := newFacadeForTest()

	format := model.WaveFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16}
	item := model.NewPlayItem("a.wav", "pcm", "WAV", 44100*10, format) // 10 s
	src := &fakePosition{pos: 2.5, item: item}
	facade.BindPosition(src)

	assert.InDelta(t, 25.0, facade.PositionPercent(), 1e-9)

	require.NoError(t, facade.SetPositionPercent(70))
	require.Len(t, src.seeked, 1)
	assert.InDelta(t, 7.0, src.seeked[0], 1e-9)
}

func TestFacade_SetPositionPercentClampsOutOfRange(t *testing.T) {
	facade, _ := newFacadeForTest()
	format := model.WaveFormat{SampleRate: 100, Channels: 1, BitsPerSample: 16}
	src := &fakePosition{item: model.NewPlayItem("a.wav", "pcm", "WAV", 1000, format)} // 10 s
	facade.BindPosition(src)

	require.NoError(t, facade.SetPositionPercent(150))
	require.NoError(t, facade.SetPositionPercent(-5))
	require.Len(t, src.seeked, 2)
	assert.InDelta(t, 10.0, src.seeked[0], 1e-9)
	assert.InDelta(t, 0.0, src.seeked[1], 1e-9)
}

func TestFacade_PositionWithNothingPlaying(t *testing.T) {
	facade, _ := newFacadeForTest()

	assert.Zero(t, facade.PositionPercent(), "no source bound")
	assert.Error(t, facade.SetPositionPercent(50))

	facade.BindPosition(&fakePosition{})
	assert.Zero(t, facade.PositionPercent(), "source bound but no current item")
	assert.Error(t, facade.SetPositionPercent(50))
}

func TestFacade_ItemHelpers(t *testing.T) {
	facade, _ := newFacadeForTest()
	format := model.WaveFormat{SampleRate: 8000, Channels: 1, BitsPerSample: 16}

	it := facade.ItemAlloc("song.wav", "pcm", "WAV", 8000, format)
	facade.ItemAddMeta(it, "title", "Song")

	cp := facade.ItemCopy(it)
	assert.NotEqual(t, it.ID, cp.ID)
	title, ok := facade.ItemFindMeta(cp, "title")
	require.True(t, ok)
	assert.Equal(t, "Song", title)
}

func TestFacade_InsertCuesheetFromBufferAppendsToPlaylist(t *testing.T) {
	facade, pl := newFacadeForTest()
	format := model.WaveFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16}
	audio := facade.ItemAlloc("album.wav", "pcm", "WAV", 44100*240, format)

	cue := []byte("TITLE \"Album\"\nTRACK 01 AUDIO\nINDEX 01 00:00:00\nTRACK 02 AUDIO\nINDEX 01 02:00:00\n")
	items, err := facade.InsertCuesheetFromBuffer(cue, audio)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, pl.Count())
	assert.Equal(t, int64(44100*120), items[1].StartSample)
}

func TestFacade_VolumeDBAndLinearAgree(t *testing.T) {
	facade, _ := newFacadeForTest()

	facade.SetVolumeLinear(0.5)
	assert.InDelta(t, -6.0206, facade.VolumeDB(), 0.001)
	assert.InDelta(t, 0.5, facade.VolumeLinear(), 1e-9)

	facade.SetVolumeDB(0)
	assert.InDelta(t, 1.0, facade.VolumeLinear(), 1e-9)
}

func TestFacade_TransportPostsToLoop(t *testing.T) {
	bus := event.NewBus()
	loop := transport.NewLoop(1, nil, nil)
	facade := plugin.NewFacade(bus, loop, nil, nil)

	require.NoError(t, facade.Play())
	assert.ErrorIs(t, facade.Pause(), transport.ErrMessageQueueFull, "capacity-1 queue is full after one post")
}
