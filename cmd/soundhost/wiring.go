// Command soundhost is the process entry point for the plugin host and
// audio pipeline core: it wires together the event bus, plugin registry,
// playlist, streamer and output sink, then hands control to a cobra
// command tree (serve / plugins list / plugins discover).
package main

import (
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"time"

	"github.com/arung-agamani/soundhost/config"
	"github.com/arung-agamani/soundhost/internal/decoder"
	"github.com/arung-agamani/soundhost/internal/decoder/pcmdecoder"
	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/metrics"
	"github.com/arung-agamani/soundhost/internal/playlist"
	"github.com/arung-agamani/soundhost/internal/plugin"
	"github.com/arung-agamani/soundhost/internal/sink"
	"github.com/arung-agamani/soundhost/internal/sink/memsink"
	"github.com/arung-agamani/soundhost/internal/sink/portaudioout"
	"github.com/arung-agamani/soundhost/internal/streamer"
	"github.com/arung-agamani/soundhost/internal/transport"
)

// host bundles every long-lived component serve needs to run the pipeline.
type host struct {
	cfg      *config.Config
	bus      *event.Bus
	registry *plugin.Registry
	facade   *plugin.Facade
	playlist *playlist.List
	sink     *sink.Sink
	streamer *streamer.Streamer
	loop     *transport.Loop
	metrics  *metrics.Metrics
}

// buildRegistry registers the built-in decoder and output plugins and runs
// a discovery pass over cfg.PluginDir, returning the populated registry and
// its facade. Used by both `serve` and the `plugins` introspection
// subcommands, so a plugin listed by `plugins list` is exactly what `serve`
// would load.
func buildRegistry(cfg *config.Config, bus *event.Bus, loop *transport.Loop, pl *playlist.List) (*plugin.Registry, *plugin.Facade) {
	return buildRegistryWithMetrics(cfg, bus, loop, pl, nil)
}

// buildRegistryWithMetrics is buildRegistry plus metrics wiring; split out so
// introspection-only callers (plugins_cmd.go) don't need a *metrics.Metrics.
func buildRegistryWithMetrics(cfg *config.Config, bus *event.Bus, loop *transport.Loop, pl *playlist.List, m *metrics.Metrics) (*plugin.Registry, *plugin.Facade) {
	facade := plugin.NewFacade(bus, loop, pl, md5.Sum)
	registry := plugin.New(facade)
	if m != nil {
		registry.SetLoadFailureHook(m.ObservePluginLoadFailure)
	}

	if err := registry.RegisterBuiltin(pcmdecoder.New()); err != nil {
		slog.Error("soundhost: failed to register built-in decoder", "error", err)
	}
	if err := registry.RegisterBuiltin(memsink.New(nil)); err != nil {
		slog.Error("soundhost: failed to register in-memory output", "error", err)
	}
	if err := registry.RegisterBuiltin(portaudioout.New()); err != nil {
		slog.Error("soundhost: failed to register PortAudio output", "error", err)
	}

	if err := registry.Discover(cfg.PluginDir); err != nil {
		slog.Warn("soundhost: plugin discovery skipped", "directory", cfg.PluginDir, "error", err)
	}

	return registry, facade
}

// buildHost wires every component serve needs: registry, playlist (scanned
// from cfg.MusicDir), streamer, and a sink backed by the configured default
// output. The streamer's format-change hook is wired straight to the
// sink's SetFormat so a format change reaches the sink whether it was
// caused by an explicit transport command or the streamer's own
// end-of-track advance.
func buildHost(cfg *config.Config) (*host, error) {
	bus := event.NewBus()
	m := metrics.New()
	bus.SetEmitHook(m.ObserveEvent)

	pl := playlist.New("default")
	loop := transport.NewLoop(cfg.CommandQueueCapacity, nil, nil)

	registry, facade := buildRegistryWithMetrics(cfg, bus, loop, pl, m)

	decoders := registry.Decoders()
	if len(decoders) == 0 {
		return nil, fmt.Errorf("soundhost: no decoder plugins registered")
	}
	decoderMap := make(map[string]decoder.Plugin, len(decoders))
	for _, d := range decoders {
		decoderMap[d.Header().ID] = d
	}

	scanned, err := playlist.BuildDefaultList(cfg.MusicDir, decoders)
	if err != nil {
		slog.Warn("soundhost: music directory scan produced no playlist", "directory", cfg.MusicDir, "error", err)
	} else {
		pl.Add(scanned.Items()...)
	}

	strm := streamer.New(pl, decoderMap, bus, cfg.RingBufferBytes, cfg.BlockSizeBytes)
	strm.SetOccupancyHook(m.ObserveRingOccupancy)

	outputs := registry.Outputs()
	var factory sink.QueueFactory
	for _, o := range outputs {
		if o.Header().ID == cfg.DefaultOutput {
			factory = o.NewQueueFactory()
			break
		}
	}
	if factory == nil && len(outputs) > 0 {
		slog.Warn("soundhost: configured default output not found, using first registered output",
			"configured", cfg.DefaultOutput, "using", outputs[0].Header().ID)
		factory = outputs[0].NewQueueFactory()
	}
	if factory == nil {
		return nil, fmt.Errorf("soundhost: no output plugins registered")
	}

	sk := sink.New(strm, factory, 0, cfg.BlockSizeBytes)
	sk.SetStateHook(func(st sink.State) {
		m.ObserveSinkState(st)
		switch st {
		case sink.Paused:
			bus.Emit(event.Event{Kind: event.Paused, Timestamp: time.Now()})
		case sink.Playing:
			bus.Emit(event.Event{Kind: event.Unpaused, Timestamp: time.Now()})
		}
	})
	sk.SetThreadHook(m.ObserveAudioThreadUp)
	strm.SetFormatChangeHook(sk.SetFormat)
	facade.BindPosition(strm)

	loop.Bind(strm, sk)

	return &host{
		cfg:      cfg,
		bus:      bus,
		registry: registry,
		facade:   facade,
		playlist: pl,
		sink:     sk,
		streamer: strm,
		loop:     loop,
		metrics:  m,
	}, nil
}

// run starts the streamer's decode goroutine, the plugin-directory
// watcher, and the transport command loop, and blocks until ctx is
// cancelled.
func (h *host) run(ctx context.Context) {
	go h.streamer.Start(ctx)
	go func() {
		if err := h.registry.Watch(ctx, h.cfg.PluginDir); err != nil {
			slog.Warn("soundhost: plugin directory watch unavailable", "directory", h.cfg.PluginDir, "error", err)
		}
	}()
	h.loop.Run(ctx)
	h.sink.Stop()
	h.registry.Unload()
}
