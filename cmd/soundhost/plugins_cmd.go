package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arung-agamani/soundhost/config"
	"github.com/arung-agamani/soundhost/internal/event"
	"github.com/arung-agamani/soundhost/internal/playlist"
	"github.com/arung-agamani/soundhost/internal/transport"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect registered plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered plugin (built-ins plus cfg.PluginDir discovery)",
	RunE:  runPluginsList,
}

var pluginsDiscoverCmd = &cobra.Command{
	Use:   "discover <dir>",
	Short: "Run a discovery pass against an additional directory and list the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginsDiscover,
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd, pluginsDiscoverCmd)
}

// registryOnlyHost builds just enough of the host to populate a registry:
// an idle transport loop and an empty playlist that nothing ever drives.
// `plugins list`/`plugins discover` only need introspection, not a running
// pipeline.
func registryOnlyHost(cfg *config.Config) *host {
	bus := event.NewBus()
	pl := playlist.New("introspection")
	loop := transport.NewLoop(cfg.CommandQueueCapacity, nil, nil)
	registry, facade := buildRegistry(cfg, bus, loop, pl)
	return &host{cfg: cfg, bus: bus, registry: registry, facade: facade, playlist: pl, loop: loop}
}

func runPluginsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	h := registryOnlyHost(cfg)
	printRecords(h)
	return nil
}

func runPluginsDiscover(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	h := registryOnlyHost(cfg)
	if err := h.registry.Discover(args[0]); err != nil {
		return fmt.Errorf("discover %s: %w", args[0], err)
	}
	printRecords(h)
	return nil
}

func printRecords(h *host) {
	for _, rec := range h.registry.Records() {
		status := "active"
		if !rec.Active {
			status = "inactive"
		}
		fmt.Printf("%-10s %-8s %-20s v%d.%d  %s\n",
			rec.Header.ID, rec.Header.Kind, status, rec.Header.PluginMajor, rec.Header.PluginMinor, rec.Header.Description)
	}
}
