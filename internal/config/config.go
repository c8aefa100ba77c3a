// Package config loads the TOML configuration controlling storage,
// history, background tasks, and logging. A missing file yields the
// defaults; a malformed file yields a ParseError.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration document.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	History HistoryConfig `toml:"history"`
	Tasks   TasksConfig   `toml:"tasks"`
	Syntax  SyntaxConfig  `toml:"syntax"`
	Log     LogConfig     `toml:"log"`
}

// StorageConfig controls the block store and cache.
type StorageConfig struct {
	// BlockSize is the maximum number of lines per stored block.
	BlockSize int `toml:"block_size"`

	// CacheCapacity is the number of blocks held in memory.
	CacheCapacity int `toml:"cache_capacity"`

	// Dir is the base directory for session block files. Empty means the
	// system temp directory.
	Dir string `toml:"dir"`
}

// HistoryConfig controls the undo log.
type HistoryConfig struct {
	// MaxEntries bounds the number of undoable operations.
	MaxEntries int `toml:"max_entries"`
}

// TasksConfig controls background work scheduling.
type TasksConfig struct {
	// DebounceMS is the quiet period before stats and search recompute.
	DebounceMS int `toml:"debounce_ms"`
}

// SyntaxConfig points at the shared token mapping file.
type SyntaxConfig struct {
	// Mapping is the path to the token=colorspec file. Empty disables
	// mapping support.
	Mapping string `toml:"mapping"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Debounce returns the task quiet period as a duration.
func (t TasksConfig) Debounce() time.Duration {
	return time.Duration(t.DebounceMS) * time.Millisecond
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			BlockSize:     1000,
			CacheCapacity: 6,
		},
		History: HistoryConfig{
			MaxEntries: 200,
		},
		Tasks: TasksConfig{
			DebounceMS: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration at path. A missing file is not an error:
// the defaults are returned. Values absent from the file keep their
// defaults; a file that fails to parse returns a ParseError.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), &ParseError{
			Path:    path,
			Message: err.Error(),
			Err:     err,
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting. Zero values never occur
// after Load unless the file set them explicitly.
func (c *Config) Validate() error {
	if c.Storage.BlockSize <= 0 {
		return fmt.Errorf("storage.block_size must be positive, got %d", c.Storage.BlockSize)
	}
	if c.Storage.CacheCapacity <= 0 {
		return fmt.Errorf("storage.cache_capacity must be positive, got %d", c.Storage.CacheCapacity)
	}
	if c.History.MaxEntries <= 0 {
		return fmt.Errorf("history.max_entries must be positive, got %d", c.History.MaxEntries)
	}
	if c.Tasks.DebounceMS < 0 {
		return fmt.Errorf("tasks.debounce_ms must not be negative, got %d", c.Tasks.DebounceMS)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	return nil
}

// ParseError reports a configuration file that failed to parse.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
