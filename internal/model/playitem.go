package model

import "sync/atomic"

// lastItemID is a process-wide counter for generating unique PlayItem ids.
var lastItemID atomic.Int64

func nextItemID() int64 {
	return lastItemID.Add(1)
}

// PlayItem is a playable unit: an entire file, or a cuesheet sub-range of one.
// Created by a decoder's insert operation, owned by the playlist, and
// referenced (never mutated) by the streamer while playing.
type PlayItem struct {
	ID int64

	// Locator is the source URI or filesystem path.
	Locator string
	// DecoderID is the stable id of the decoder that claims this item.
	DecoderID string
	// FileType is a human-readable codec/container tag, e.g. "MP3", "WAV".
	FileType string

	TotalSamples  int64
	SampleRate    int
	Channels      int
	BitsPerSample int
	IsFloat       bool
	IsBigEndian   bool
	ChannelMask   uint32

	// StartSample and EndSample bound a sub-range item derived from a
	// cuesheet. Default is [0, TotalSamples-1] for a whole-file item.
	StartSample int64
	EndSample   int64

	// Metadata is an open-ended, insertion-preserving, single-valued map from
	// lowercase keys ("title", "artist", ...) to string values.
	metaKeys []string
	metaVals map[string]string
}

// NewPlayItem constructs a PlayItem covering the whole decoded stream
// [0, totalSamples-1]. Use WithRange to narrow it to a cuesheet sub-range.
func NewPlayItem(locator, decoderID, fileType string, totalSamples int64, fmt WaveFormat) *PlayItem {
	it := &PlayItem{
		ID:            nextItemID(),
		Locator:       locator,
		DecoderID:     decoderID,
		FileType:      fileType,
		TotalSamples:  totalSamples,
		SampleRate:    fmt.SampleRate,
		Channels:      fmt.Channels,
		BitsPerSample: fmt.BitsPerSample,
		IsFloat:       fmt.IsFloat,
		IsBigEndian:   fmt.IsBigEndian,
		ChannelMask:   fmt.ChannelMask,
		StartSample:   0,
		EndSample:     totalSamples - 1,
		metaVals:      make(map[string]string),
	}
	return it
}

// WithRange returns a copy of the item narrowed to [start, end] inclusive,
// as produced for a cuesheet track. The copy gets a fresh id.
func (it *PlayItem) WithRange(start, end int64) *PlayItem {
	cp := *it
	cp.ID = nextItemID()
	cp.StartSample = start
	cp.EndSample = end
	cp.metaVals = make(map[string]string, len(it.metaVals))
	cp.metaKeys = append([]string(nil), it.metaKeys...)
	for k, v := range it.metaVals {
		cp.metaVals[k] = v
	}
	return &cp
}

// Format returns the WaveFormat this item's decoder originally reported.
func (it *PlayItem) Format() WaveFormat {
	return WaveFormat{
		SampleRate:    it.SampleRate,
		Channels:      it.Channels,
		BitsPerSample: it.BitsPerSample,
		IsFloat:       it.IsFloat,
		IsBigEndian:   it.IsBigEndian,
		ChannelMask:   it.ChannelMask,
	}
}

// DurationSeconds returns the item's playable duration, honouring a cuesheet
// sub-range when present.
func (it *PlayItem) DurationSeconds() float64 {
	if it.SampleRate <= 0 {
		return 0
	}
	samples := it.EndSample - it.StartSample + 1
	if samples < 0 {
		samples = 0
	}
	return float64(samples) / float64(it.SampleRate)
}

// SetMeta sets a metadata value, preserving insertion order for new keys.
// Keys are lower-cased; this map is single-valued per key.
func (it *PlayItem) SetMeta(key, value string) {
	key = lowerASCII(key)
	if it.metaVals == nil {
		it.metaVals = make(map[string]string)
	}
	if _, exists := it.metaVals[key]; !exists {
		it.metaKeys = append(it.metaKeys, key)
	}
	it.metaVals[key] = value
}

// Meta returns the metadata value for key and whether it was present.
func (it *PlayItem) Meta(key string) (string, bool) {
	v, ok := it.metaVals[lowerASCII(key)]
	return v, ok
}

// MetaKeys returns metadata keys in insertion order.
func (it *PlayItem) MetaKeys() []string {
	out := make([]string, len(it.metaKeys))
	copy(out, it.metaKeys)
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
