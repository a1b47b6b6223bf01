package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arung-agamani/soundhost/config"
	"github.com/arung-agamani/soundhost/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host: discover plugins, build the playlist, and start playback",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	slog.Info("soundhost: starting",
		"plugin_dir", cfg.PluginDir,
		"music_dir", cfg.MusicDir,
		"default_output", cfg.DefaultOutput,
	)

	h, err := buildHost(cfg)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{}))
		go func() {
			slog.Info("soundhost: metrics listening", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				slog.Error("soundhost: metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		slog.Info("soundhost: shutdown signal received")
		_ = h.loop.Post(transport.Terminate)
		cancel()
	}()

	if h.playlist.Count() > 0 {
		if err := h.loop.Post(transport.PlaySong); err != nil {
			slog.Warn("soundhost: could not post initial play command", "error", err)
		}
	}

	h.run(ctx)

	slog.Info("soundhost: stopped")
	return nil
}
