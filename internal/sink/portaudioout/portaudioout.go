// Package portaudioout is the concrete output-sink backend, built on
// github.com/gordonklaus/portaudio. The sink's enqueue model hands the
// device pre-filled buffers to drain asynchronously, while PortAudio
// pulls samples through a callback; Queue bridges the two with a small
// buffered channel of filled slots so the rest of the sink package never
// has to know the difference.
package portaudioout

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/sink"
)

// Queue is a sink.DeviceQueue backed by a single PortAudio output stream.
type Queue struct {
	format model.WaveFormat
	stream *portaudio.Stream

	mu        sync.Mutex
	available []bool
	pending   chan int
	slots     [][]byte

	current []float32 // decode scratch for the active pending buffer
	cursor  int
	playing bool
}

// NewFactory returns a sink.QueueFactory that opens a default PortAudio
// output stream per format; a format change disposes the queue and opens
// a new one.
func NewFactory() sink.QueueFactory {
	return func(fmt model.WaveFormat, maxBuffers, bufferSize int) (sink.DeviceQueue, error) {
		return open(fmt, maxBuffers, bufferSize)
	}
}

func open(fmt model.WaveFormat, maxBuffers, bufferSize int) (*Queue, error) {
	if fmt.IsBigEndian {
		return nil, errorf("portaudio does not support big-endian sample streams")
	}
	if fmt.BitsPerSample != 16 && !(fmt.BitsPerSample == 32 && fmt.IsFloat) {
		return nil, errorf("portaudio backend supports only 16-bit int or 32-bit float PCM, got %d bit (float=%v)", fmt.BitsPerSample, fmt.IsFloat)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, errorf("portaudio.Initialize: %v", err)
	}

	q := &Queue{
		format:    fmt,
		available: make([]bool, maxBuffers),
		pending:   make(chan int, maxBuffers),
		slots:     make([][]byte, maxBuffers),
		current:   make([]float32, 0, bufferSize/2),
	}
	for i := range q.available {
		q.available[i] = true
	}

	framesPerBuffer := bufferSize / fmt.BytesPerFrame()
	stream, err := portaudio.OpenDefaultStream(0, fmt.Channels, float64(fmt.SampleRate), framesPerBuffer, q.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, errorf("portaudio.OpenDefaultStream: %v", err)
	}
	q.stream = stream
	return q, nil
}

// callback is invoked by PortAudio on its own audio thread whenever it needs
// more output frames. It never allocates: out is reused by the driver.
func (q *Queue) callback(out []float32) {
	for i := range out {
		if q.cursor >= len(q.current) {
			select {
			case idx := <-q.pending:
				q.current = decodeFrames(q.current[:0], q.slots[idx], q.format)
				q.cursor = 0
				q.release(idx)
			default:
				out[i] = 0
				continue
			}
		}
		if q.cursor < len(q.current) {
			out[i] = q.current[q.cursor]
			q.cursor++
		} else {
			out[i] = 0
		}
	}
}

func (q *Queue) release(idx int) {
	q.mu.Lock()
	q.available[idx] = true
	q.mu.Unlock()
}

func decodeFrames(out []float32, data []byte, f model.WaveFormat) []float32 {
	if f.IsFloat {
		for i := 0; i+4 <= len(data); i += 4 {
			bits := binary.LittleEndian.Uint32(data[i : i+4])
			out = append(out, math.Float32frombits(bits))
		}
		return out
	}
	for i := 0; i+2 <= len(data); i += 2 {
		v := int16(binary.LittleEndian.Uint16(data[i : i+2]))
		out = append(out, float32(v)/32768.0)
	}
	return out
}

func (q *Queue) IsRunning() (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing, nil
}

func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.playing {
		return nil
	}
	if err := q.stream.Start(); err != nil {
		return errorf("portaudio stream start: %v", err)
	}
	q.playing = true
	return nil
}

func (q *Queue) PauseQueue() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.playing {
		return nil
	}
	if err := q.stream.Stop(); err != nil {
		return errorf("portaudio stream stop: %v", err)
	}
	q.playing = false
	return nil
}

func (q *Queue) LowestAvailableBuffer() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, avail := range q.available {
		if avail {
			return i, true
		}
	}
	return -1, false
}

func (q *Queue) Enqueue(index int, data []byte) error {
	q.mu.Lock()
	if index < 0 || index >= len(q.available) {
		q.mu.Unlock()
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	q.slots[index] = cp
	q.available[index] = false
	q.mu.Unlock()

	select {
	case q.pending <- index:
	default:
		// Pending channel full: the callback hasn't drained fast enough.
		// Drop the buffer rather than block the audio thread.
		q.release(index)
	}
	return nil
}

func (q *Queue) Dispose() {
	q.mu.Lock()
	stream := q.stream
	q.stream = nil
	q.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
		_ = stream.Close()
		portaudio.Terminate()
	}
}

func errorf(format string, args ...any) error {
	return fmt.Errorf("portaudioout: "+format, args...)
}

// Plugin is the registry-facing descriptor for this backend, wrapping
// NewFactory as the QueueFactory a sink.Sink uses once installed.
type Plugin struct{}

// New returns a ready-to-register PortAudio output plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Header() model.PluginHeader {
	return model.PluginHeader{
		APIMajor:    model.APIVersion.Major,
		APIMinor:    model.APIVersion.Minor,
		PluginMajor: 1,
		PluginMinor: 0,
		Kind:        model.KindOutput,
		ID:          "portaudio",
		Name:        "PortAudio output",
		Description: "Cross-platform output sink backed by PortAudio",
		Website:     "",
	}
}

func (p *Plugin) NewQueueFactory() sink.QueueFactory { return NewFactory() }
