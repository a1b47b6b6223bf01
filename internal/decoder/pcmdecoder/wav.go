package pcmdecoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/arung-agamani/soundhost/internal/model"
)

// wavInfo is the subset of a RIFF/WAVE header the decoder needs: the PCM
// format plus the byte range of the "data" chunk within the file.
type wavInfo struct {
	model.WaveFormat
	DataOffset int64
	DataSize   int64
}

// readWAVHeader walks the RIFF chunk list of f looking for "fmt " and
// "data". It does not assume any particular chunk ordering, matching how
// real-world WAV files are occasionally laid out with extra chunks (LIST,
// fact, ...) ahead of the data.
func readWAVHeader(f *os.File) (*wavInfo, error) {
	var riffHeader [12]byte
	if _, err := io.ReadFull(f, riffHeader[:]); err != nil {
		return nil, fmt.Errorf("pcmdecoder: read RIFF header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("pcmdecoder: not a RIFF/WAVE file")
	}

	info := &wavInfo{}
	var haveFmt bool

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(f, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("pcmdecoder: read chunk header: %w", err)
		}
		id := string(chunkHeader[0:4])
		size := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, fmt.Errorf("pcmdecoder: read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			channels := binary.LittleEndian.Uint16(body[2:4])
			sampleRate := binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample := binary.LittleEndian.Uint16(body[14:16])

			info.Channels = int(channels)
			info.SampleRate = int(sampleRate)
			info.BitsPerSample = int(bitsPerSample)
			info.IsFloat = audioFormat == 3 // WAVE_FORMAT_IEEE_FLOAT
			info.IsBigEndian = false
			info.ChannelMask = channelMaskFor(int(channels))
			haveFmt = true
		case "data":
			pos, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, fmt.Errorf("pcmdecoder: tell: %w", err)
			}
			info.DataOffset = pos
			info.DataSize = size
			// Return as soon as both fmt and data are located; if data
			// comes first, its body is skipped below and the walk goes on
			// looking for fmt.
			if haveFmt {
				return info, nil
			}
		}

		// Chunks are word-aligned; skip the chunk body (and pad byte).
		skip := size
		if size%2 == 1 {
			skip++
		}
		if id != "fmt " {
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("pcmdecoder: skip chunk %q: %w", id, err)
			}
		} else if size%2 == 1 {
			if _, err := f.Seek(1, io.SeekCurrent); err != nil {
				return nil, err
			}
		}
	}

	if !haveFmt || info.DataSize == 0 {
		return nil, fmt.Errorf("pcmdecoder: missing fmt or data chunk")
	}
	return info, nil
}

func channelMaskFor(channels int) uint32 {
	var mask uint32
	for i := 0; i < channels; i++ {
		mask |= 1 << uint(i)
	}
	return mask
}

// TotalSamples returns the number of interleaved sample frames the data
// chunk holds.
func (w *wavInfo) TotalSamples() int64 {
	bpf := w.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return w.DataSize / int64(bpf)
}
