// Package pcmdecoder is the reference decoder plugin. It parses WAV
// natively and shells out to ffmpeg for every other supported format,
// reading raw PCM off the child's stdout.
package pcmdecoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/decoder/cuesheet"
	"github.com/arung-agamani/soundhost/internal/model"
)

const pluginID = "pcm"

var extensions = []string{"wav", "mp3", "flac", "aac", "ogg"}
var fileTypes = []string{"WAV", "MP3", "FLAC", "AAC", "OGG"}

// Decoder is the concrete reference Plugin implementation.
type Decoder struct{}

// New returns a ready-to-register reference decoder plugin.
func New() *Decoder { return &Decoder{} }

func (d *Decoder) Header() model.PluginHeader {
	return model.PluginHeader{
		APIMajor:    model.APIVersion.Major,
		APIMinor:    model.APIVersion.Minor,
		PluginMajor: 1,
		PluginMinor: 0,
		Kind:        model.KindDecoder,
		ID:          pluginID,
		Name:        "Reference PCM decoder",
		Description: "Decodes WAV natively; shells out to ffmpeg for MP3/FLAC/AAC/OGG",
		Website:     "",
	}
}

func (d *Decoder) Extensions() []string { return append([]string(nil), extensions...) }
func (d *Decoder) FileTypes() []string  { return append([]string(nil), fileTypes...) }

// instState is the opaque per-instance state stashed in Instance.Impl.
type instState struct {
	path  string
	isWAV bool

	file *os.File
	wav  *wavInfo

	ff *ffmpegSource
}

func (d *Decoder) Open() *decoder.Instance {
	return &decoder.Instance{}
}

func ext(locator string) string {
	e := filepath.Ext(locator)
	return strings.ToLower(strings.TrimPrefix(e, "."))
}

func (d *Decoder) Init(inst *decoder.Instance, item *model.PlayItem) error {
	st := &instState{path: item.Locator, isWAV: ext(item.Locator) == "wav"}

	inst.Item = item
	inst.Start = item.StartSample
	inst.End = item.EndSample

	if st.isWAV {
		f, err := os.Open(item.Locator)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", decoder.ErrInitFailed, item.Locator, err)
		}
		info, err := readWAVHeader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("%w: %v", decoder.ErrInitFailed, err)
		}
		st.file = f
		st.wav = info
		inst.Format = info.WaveFormat
		inst.Impl = st

		return d.SeekSample(inst, 0)
	}

	inst.Format = ffmpegTargetFormat
	inst.Impl = st
	return d.SeekSample(inst, 0)
}

func (d *Decoder) Read(inst *decoder.Instance, buf []byte) (int, error) {
	st, ok := inst.Impl.(*instState)
	if !ok || st == nil {
		return 0, fmt.Errorf("%w: instance not initialised", decoder.ErrDecode)
	}
	if inst.AtEnd() {
		return 0, nil
	}

	bpf := inst.Format.BytesPerFrame()
	remainingFrames := inst.End - inst.Current + 1
	max := remainingFrames * int64(bpf)
	want := len(buf)
	if int64(want) > max {
		want = int(max)
	}
	if want <= 0 {
		return 0, nil
	}

	var n int
	var err error
	if st.isWAV {
		n, err = io.ReadFull(st.file, buf[:want])
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			err = nil
		}
	} else {
		n, err = io.ReadFull(st.ff, buf[:want])
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return n, fmt.Errorf("%w: %v", decoder.ErrDecode, err)
	}

	frames := int64(n / bpf)
	inst.Current += frames
	inst.ReadPos = float64(inst.Current-inst.Start) / float64(inst.Format.SampleRate)
	return n, nil
}

func (d *Decoder) SeekSample(inst *decoder.Instance, n int64) error {
	st, ok := inst.Impl.(*instState)
	if !ok || st == nil {
		return fmt.Errorf("%w: instance not initialised", decoder.ErrSeekFailed)
	}

	if n < 0 {
		n = 0
	}
	maxN := inst.End - inst.Start
	if n > maxN {
		n = maxN
	}
	target := inst.Start + n

	if st.isWAV {
		bpf := inst.Format.BytesPerFrame()
		offset := st.wav.DataOffset + target*int64(bpf)
		if _, err := st.file.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("%w: %v", decoder.ErrSeekFailed, err)
		}
	} else {
		if st.ff != nil {
			st.ff.Close()
			st.ff = nil
		}
		startSeconds := float64(target) / float64(inst.Format.SampleRate)
		src, err := startFFmpegPCM(st.path, startSeconds)
		if err != nil {
			return fmt.Errorf("%w: %v", decoder.ErrSeekFailed, err)
		}
		st.ff = src
	}

	inst.Current = target
	inst.ReadPos = float64(n) / float64(inst.Format.SampleRate)
	return nil
}

func (d *Decoder) Seek(inst *decoder.Instance, t float64) error {
	n := int64(math.Round(t * float64(inst.Format.SampleRate)))
	return d.SeekSample(inst, n)
}

func (d *Decoder) Free(inst *decoder.Instance) {
	st, ok := inst.Impl.(*instState)
	if !ok || st == nil {
		return
	}
	if st.file != nil {
		st.file.Close()
		st.file = nil
	}
	if st.ff != nil {
		st.ff.Close()
		st.ff = nil
	}
	inst.Impl = nil
}

// Insert probes locator with a three-tier fallback: embedded cuesheet,
// sibling .cue file, then a single synthesized PlayItem.
func (d *Decoder) Insert(cursor *model.PlayItem, locator string) ([]*model.PlayItem, error) {
	e := ext(locator)
	isWAV := e == "wav"

	var format model.WaveFormat
	var totalSamples int64

	if isWAV {
		f, err := os.Open(locator)
		if err != nil {
			return nil, fmt.Errorf("pcmdecoder: insert: open %s: %w", locator, err)
		}
		info, err := readWAVHeader(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("pcmdecoder: insert: %w", err)
		}
		format = info.WaveFormat
		totalSamples = info.TotalSamples()
	} else {
		dur, err := probeDurationSeconds(locator)
		if err != nil {
			return nil, fmt.Errorf("pcmdecoder: insert: %w", err)
		}
		format = ffmpegTargetFormat
		totalSamples = int64(dur * float64(format.SampleRate))
	}

	fileType := strings.ToUpper(e)

	if sheet, ok := tryEmbeddedCuesheet(locator); ok {
		return sheet.BuildPlayItems(locator, pluginID, fileType, totalSamples, format), nil
	}
	if sheet, ok := trySiblingCuesheet(locator); ok {
		return sheet.BuildPlayItems(locator, pluginID, fileType, totalSamples, format), nil
	}

	item := model.NewPlayItem(locator, pluginID, fileType, totalSamples, format)
	base := filepath.Base(locator)
	item.SetMeta("title", strings.TrimSuffix(base, filepath.Ext(base)))
	applyTags(item, locator)

	return []*model.PlayItem{item}, nil
}

func tryEmbeddedCuesheet(locator string) (*cuesheet.Sheet, bool) {
	f, err := os.Open(locator)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	m, err := tagReadFrom(f)
	if err != nil {
		return nil, false
	}
	raw := m
	for k, v := range raw {
		if strings.EqualFold(k, "cuesheet") {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				sheet, err := cuesheet.Parse(bytes.NewReader([]byte(s)))
				if err == nil {
					return sheet, true
				}
			}
		}
	}
	return nil, false
}

func trySiblingCuesheet(locator string) (*cuesheet.Sheet, bool) {
	cuePath := strings.TrimSuffix(locator, filepath.Ext(locator)) + ".cue"
	f, err := os.Open(cuePath)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	sheet, err := cuesheet.Parse(f)
	if err != nil {
		return nil, false
	}
	return sheet, true
}
