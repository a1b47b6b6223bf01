// Package memsink is an in-process fake DeviceQueue backend used by the
// sink state-machine tests so they can run without a real audio device.
package memsink

import (
	"sync"

	"github.com/arung-agamani/soundhost/internal/model"
	"github.com/arung-agamani/soundhost/internal/sink"
)

// Enqueued records one buffer handed to the fake device, for assertions in
// tests.
type Enqueued struct {
	Format model.WaveFormat
	Data   []byte
}

// Queue is a sink.DeviceQueue that records every enqueued buffer instead of
// talking to real hardware.
type Queue struct {
	mu        sync.Mutex
	format    model.WaveFormat
	available []bool
	running   bool
	disposed  bool

	// History is every buffer ever enqueued on this queue, in order.
	History []Enqueued
}

// Factory returns a sink.QueueFactory that builds Queues, stashing each
// constructed queue into *into so a test can inspect it after the sink
// creates it (queues are created lazily inside the sink's audio thread).
func Factory(into *[]*Queue) sink.QueueFactory {
	var mu sync.Mutex
	return func(fmt model.WaveFormat, maxBuffers, bufferSize int) (sink.DeviceQueue, error) {
		q := &Queue{
			format:    fmt,
			available: make([]bool, maxBuffers),
		}
		for i := range q.available {
			q.available[i] = true
		}
		mu.Lock()
		*into = append(*into, q)
		mu.Unlock()
		return q, nil
	}
}

func (q *Queue) IsRunning() (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running, nil
}

func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = true
	return nil
}

func (q *Queue) PauseQueue() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = false
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

// Enqueue copies data, records it in History, and marks the slot
// unavailable. Release simulates the device callback restoring the slot.
func (q *Queue) Enqueue(index int, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.available) {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	q.History = append(q.History, Enqueued{Format: q.format, Data: cp})
	q.available[index] = false
	return nil
}

// Release marks a previously enqueued buffer slot available again, as the
// real device callback would once playback of that buffer finishes.
func (q *Queue) Release(index int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index >= 0 && index < len(q.available) {
		q.available[index] = true
	}
}

// ReleaseAll marks every slot available, the common case for a test that
// doesn't care about buffer exhaustion.
func (q *Queue) ReleaseAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.available {
		q.available[i] = true
	}
}

func (q *Queue) Dispose() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.disposed = true
	q.running = false
}

// Disposed reports whether Dispose has been called.
func (q *Queue) Disposed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disposed
}

// Format returns the wave format this queue was created with.
func (q *Queue) Format() model.WaveFormat {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.format
}

// Plugin is the registry-facing descriptor for the in-process fake backend,
// useful as a default output when no real audio device is desired (CI,
// headless installs, the sink property tests).
type Plugin struct {
	queues *[]*Queue
}

// New returns a memsink output plugin. If into is non-nil, every Queue it
// constructs is appended to *into for later inspection.
func New(into *[]*Queue) *Plugin {
	if into == nil {
		into = &[]*Queue{}
	}
	return &Plugin{queues: into}
}

func (p *Plugin) Header() model.PluginHeader {
	return model.PluginHeader{
		APIMajor:    model.APIVersion.Major,
		APIMinor:    model.APIVersion.Minor,
		PluginMajor: 1,
		PluginMinor: 0,
		Kind:        model.KindOutput,
		ID:          "mem",
		Name:        "In-memory output",
		Description: "Fake output sink that records buffers instead of playing audio",
	}
}

func (p *Plugin) NewQueueFactory() sink.QueueFactory { return Factory(p.queues) }
