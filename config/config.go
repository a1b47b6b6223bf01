// Package config loads the host's process configuration from the
// environment: where to discover dynamic plugins, which built-in output to
// drive by default, and the streamer's ring/block sizing.
package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	// PluginDir is the directory Discover walks for "<stem>_load" dynamic
	// modules, typically derived from the install prefix.
	PluginDir string
	// MusicDir is scanned at startup to build the default playlist.
	MusicDir string
	// DefaultOutput is the id of the output plugin the sink is driven by
	// (the built-ins are "portaudio" and "mem"); if no active output plugin
	// has this id, the first registered output is used.
	DefaultOutput string
	// RingBufferBytes sizes the streamer's internal PCM ring (0 → 64KiB).
	RingBufferBytes int
	// BlockSizeBytes sizes both the streamer's decode chunk and the sink's
	// local transfer buffer (0 → 8192, matching BufferSizeBytes).
	BlockSizeBytes int
	// CommandQueueCapacity sizes the transport command channel (0 → 64).
	CommandQueueCapacity int
	// MetricsAddr is the address /metrics listens on, empty to disable.
	MetricsAddr string
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string
}

// Load reads configuration from the environment, falling back to defaults
// for anything unset.
func Load() *Config {
	return &Config{
		PluginDir:            getEnv("SOUNDHOST_PLUGIN_DIR", "./plugins"),
		MusicDir:             getEnv("SOUNDHOST_MUSIC_DIR", "./music"),
		DefaultOutput:        getEnv("SOUNDHOST_DEFAULT_OUTPUT", "portaudio"),
		RingBufferBytes:      getEnvAsInt("SOUNDHOST_RING_BUFFER_BYTES", 64*1024),
		BlockSizeBytes:       getEnvAsInt("SOUNDHOST_BLOCK_SIZE_BYTES", 8192),
		CommandQueueCapacity: getEnvAsInt("SOUNDHOST_COMMAND_QUEUE_CAPACITY", 64),
		MetricsAddr:          getEnv("SOUNDHOST_METRICS_ADDR", ""),
		LogLevel:             getEnv("SOUNDHOST_LOG_LEVEL", "info"),
	}
}

// SlogLevel parses LogLevel into a slog.Level, defaulting to Info for an
// unrecognised value.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}
