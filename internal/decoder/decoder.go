// Package decoder defines the decoder contract: the per-track
// open/init/read/seek/free lifecycle and the insert operation that probes a
// source file and produces PlayItems.
package decoder

import (
	"errors"

	"github.com/arung-agamani/soundhost/internal/model"
)

var (
	// ErrInitFailed is returned by Init when a track cannot be primed for
	// decoding (bad header, unsupported sub-format, truncated file, ...).
	ErrInitFailed = errors.New("decoder: init failed")
	// ErrSeekFailed is returned by Seek/SeekSample when the position cannot
	// be honoured.
	ErrSeekFailed = errors.New("decoder: seek failed")
	// ErrDecode is a generic read-time failure; the streamer aborts the
	// current track when it sees one.
	ErrDecode = errors.New("decoder: decode error")
)

// Instance is the per-track decoding state. Invariant:
// Start <= Current <= End+1; reaching End+1 signals end-of-track.
type Instance struct {
	Item    *model.PlayItem
	Format  model.WaveFormat
	ReadPos float64 // seconds

	Start   int64
	End     int64
	Current int64

	// Impl is decoder-specific state, opaque to the streamer.
	Impl any
}

// AtEnd reports whether the instance has reached its end-of-track boundary.
func (inst *Instance) AtEnd() bool {
	return inst.Current > inst.End
}

// Plugin is the capability set a decoder plugin exposes: the full
// open/init/read/seek/free/insert lifecycle plus the descriptor header and
// the file extensions/types it claims.
type Plugin interface {
	model.Descriptor

	// Extensions lists supported file extensions without the leading dot,
	// lower-cased (e.g. "mp3").
	Extensions() []string
	// FileTypes lists supported human-readable file-type labels.
	FileTypes() []string

	// Open allocates a fresh, zero-initialised Instance. No I/O happens here.
	Open() *Instance

	// Init primes inst for decoding item: fills bps/channels/samplerate/
	// is_float/is_big_endian/channel_mask on inst.Format, honours
	// item.StartSample/EndSample for a cuesheet sub-range, and positions the
	// instance at its start sample. Returns ErrInitFailed on failure, with
	// no side effects on the playlist.
	Init(inst *Instance, item *model.PlayItem) error

	// Read writes up to len(buf) interleaved PCM bytes in inst.Format,
	// advancing inst.Current. Returns the number of bytes written; 0 means
	// end-of-track. Partial reads are allowed. Must never read past
	// inst.End.
	Read(inst *Instance, buf []byte) (int, error)

	// SeekSample positions inst.Current at inst.Start+n, clamped to
	// [inst.Start, inst.End], and updates inst.ReadPos accordingly.
	SeekSample(inst *Instance, n int64) error

	// Seek is equivalent to SeekSample(round(t*samplerate)).
	Seek(inst *Instance, t float64) error

	// Free releases all resources held by inst. Idempotent.
	Free(inst *Instance)

	// Insert probes locator, optionally expanding it into one or more
	// cuesheet sub-range PlayItems, and returns the items to insert after
	// cursor in playback order. Returns an error without side effects if the
	// source cannot be probed.
	Insert(cursor *model.PlayItem, locator string) ([]*model.PlayItem, error)
}

// CanDecode reports whether ext (without a leading dot, any case) is among
// p's supported extensions.
func CanDecode(p Plugin, ext string) bool {
	for _, e := range p.Extensions() {
		if asciiEqualFold(e, ext) {
			return true
		}
	}
	return false
}

func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
