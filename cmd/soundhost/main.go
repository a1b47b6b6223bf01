package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/arung-agamani/soundhost/config"
)

var rootCmd = &cobra.Command{
	Use:   "soundhost",
	Short: "Plugin host and audio pipeline core",
	Long:  "soundhost discovers decoder and output plugins, streams PCM between them, and dispatches lifecycle events to subscribers.",
}

func init() {
	rootCmd.AddCommand(serveCmd, pluginsCmd)
}

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
