// Package model holds the data types shared across the decoder, playlist,
// streamer and sink packages: PlayItem, WaveFormat and the small value types
// that travel between them.
package model

import "fmt"

// WaveFormat describes the PCM layout a decoder produces and a sink must be
// configured for. It is immutable once constructed; a format change is
// represented by handing out a new value, never mutating one in place.
type WaveFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	IsFloat       bool
	IsBigEndian   bool
	// ChannelMask is a bitmap with bit i set iff channel i is present.
	ChannelMask uint32
}

// BytesPerFrame returns the number of bytes one interleaved sample frame
// occupies in this format.
func (f WaveFormat) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// Equal reports whether two formats describe the same PCM layout.
func (f WaveFormat) Equal(o WaveFormat) bool {
	return f == o
}

// Validate returns an error if the format describes an impossible PCM layout.
func (f WaveFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("model: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("model: invalid channel count %d", f.Channels)
	}
	switch f.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("model: unsupported bits per sample %d", f.BitsPerSample)
	}
	return nil
}
