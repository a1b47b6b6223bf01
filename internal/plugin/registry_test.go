package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/playlist"
	"github.com/arung-agamani/soundhost/internal/plugin"
	"github.com/arung-agamani/soundhost/internal/transport"
)

// stubDecoder is a minimal decoder.Plugin, enough to exercise registration
// and the registry's typed accessors; its decode methods are never actually
// called by these tests.
type stubDecoder struct {
	id       string
	apiMajor int
}

func (s stubDecoder) Header() model.PluginHeader {
	major := s.apiMajor
	if major == 0 {
		major = model.APIVersion.Major
	}
	return model.PluginHeader{APIMajor: major, Kind: model.KindDecoder, ID: s.id, Name: s.id}
}
func (stubDecoder) Extensions() []string                 { return []string{"stub"} }
func (stubDecoder) FileTypes() []string                  { return []string{"STUB"} }
func (stubDecoder) Open() *decoder.Instance               { return &decoder.Instance{} }
func (stubDecoder) Init(*decoder.Instance, *model.PlayItem) error { return nil }
func (stubDecoder) Read(*decoder.Instance, []byte) (int, error)  { return 0, nil }
func (stubDecoder) SeekSample(*decoder.Instance, int64) error    { return nil }
func (stubDecoder) Seek(*decoder.Instance, float64) error        { return nil }
func (stubDecoder) Free(*decoder.Instance)                       {}
func (stubDecoder) Insert(*model.PlayItem, string) ([]*model.PlayItem, error) {
	return nil, nil
}

func newFacadeForTest() (*plugin.Facade, *playlist.List) {
	bus := event.NewBus()
	pl := playlist.New("t")
	loop := transport.NewLoop(8, nil, nil)
	return plugin.NewFacade(bus, loop, pl, nil), pl
}

func TestRegistry_RegisterBuiltinAppearsInRecords(t *testing.T) {
	facade, _ := newFacadeForTest()
	r := plugin.New(facade)

	require.NoError(t, r.RegisterBuiltin(stubDecoder{id: "stub-a"}))

	recs := r.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "stub-a", recs[0].Header.ID)
	assert.True(t, recs[0].Active)
	assert.Empty(t, recs[0].TrustStamp, "built-ins carry no trust stamp")
}

func TestRegistry_RegisterBuiltinRejectsIncompatibleAPIVersion(t *testing.T) {
	facade, _ := newFacadeForTest()
	r := plugin.New(facade)

	err := r.RegisterBuiltin(stubDecoder{id: "stub-b", apiMajor: model.APIVersion.Major + 1})
	assert.ErrorIs(t, err, plugin.ErrIncompatibleAPIVersion)
	assert.Empty(t, r.Records())
}

func TestRegistry_DiscoverOnNonDirectoryFails(t *testing.T) {
	facade, _ := newFacadeForTest()
	r := plugin.New(facade)

	err := r.Discover("/does/not/exist")
	assert.ErrorIs(t, err, plugin.ErrNotADirectory)
}

func TestRegistry_UnloadClearsRecords(t *testing.T) {
	facade, _ := newFacadeForTest()
	r := plugin.New(facade)
	require.NoError(t, r.RegisterBuiltin(stubDecoder{id: "stub-c"}))

	r.Unload()

	assert.Empty(t, r.Records())
	assert.Empty(t, r.Decoders())
}

// lifecyclePlugin tracks whether Start/Stop were called, proving the
// registry's lifecycle ordering without needing a real audio-capable plugin.
type lifecyclePlugin struct {
	stubDecoder
	started, stopped bool
}

func (l *lifecyclePlugin) Start() error { l.started = true; return nil }
func (l *lifecyclePlugin) Stop() error  { l.stopped = true; return nil }

func TestRegistry_RegisterBuiltinRunsStartBeforeVisible(t *testing.T) {
	facade, _ := newFacadeForTest()
	r := plugin.New(facade)
	lc := &lifecyclePlugin{stubDecoder: stubDecoder{id: "stub-d"}}

	require.NoError(t, r.RegisterBuiltin(lc))

	assert.True(t, lc.started)
	recs := r.Records()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Active)

	r.Unload()
	assert.True(t, lc.stopped)
}

type failingLifecyclePlugin struct {
	stubDecoder
}

func (failingLifecyclePlugin) Start() error { return assert.AnError }
func (failingLifecyclePlugin) Stop() error  { return nil }

func TestRegistry_StartFailureMarksRecordInactiveButRetained(t *testing.T) {
	facade, _ := newFacadeForTest()
	r := plugin.New(facade)

	require.NoError(t, r.RegisterBuiltin(failingLifecyclePlugin{stubDecoder: stubDecoder{id: "stub-e"}}))

	recs := r.Records()
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Active)
	assert.Empty(t, r.Decoders(), "an inactive plugin is excluded from the typed decoder list")
}

func TestRegistry_OutputsFiltersByKind(t *testing.T) {
	facade, _ := newFacadeForTest()
	r := plugin.New(facade)
	require.NoError(t, r.RegisterBuiltin(stubDecoder{id: "decoder-only"}))

	assert.Empty(t, r.Outputs())
}
