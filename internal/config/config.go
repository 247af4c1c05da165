// Package config loads heapctl settings from a YAML file.
//
// Example file:
//
//	heap:
//	  growth_chunk: 64KiB
//	  limit: 1GiB
//	  hardened: true
//	  page_size: 4KiB
//	log:
//	  enabled: true
//	  dir: /var/log/heapctl
//	  level: debug
//	output:
//	  format: json
//	  language: de
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/tagheap/heap/alloc"
	"github.com/joshuapare/tagheap/internal/format"
	"github.com/joshuapare/tagheap/internal/logger"
)

// Config is the top-level configuration document.
type Config struct {
	Heap   HeapConfig   `yaml:"heap"`
	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
}

// HeapConfig tunes the allocator and its region.
type HeapConfig struct {
	GrowthChunk ByteSize `yaml:"growth_chunk"`
	Limit       ByteSize `yaml:"limit"` // 0 = region default
	Hardened    bool     `yaml:"hardened"`
	PageSize    ByteSize `yaml:"page_size"` // dirty-range flush granularity
}

// LogConfig maps onto logger.Options.
type LogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
}

// OutputConfig selects printer defaults.
type OutputConfig struct {
	Format   string `yaml:"format"`
	Language string `yaml:"language"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Heap: HeapConfig{
			GrowthChunk: ByteSize(format.DefaultGrowthChunk),
			PageSize:    ByteSize(os.Getpagesize()),
		},
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Format:   "text",
			Language: "en",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults. Unknown keys are errors.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that YAML decoding alone cannot.
func (c Config) Validate() error {
	if c.Heap.GrowthChunk < 0 {
		return fmt.Errorf("heap.growth_chunk must not be negative")
	}
	if c.Heap.PageSize < 0 || (c.Heap.PageSize > 0 && c.Heap.PageSize&(c.Heap.PageSize-1) != 0) {
		return fmt.Errorf("heap.page_size must be a power of two, got %d", c.Heap.PageSize)
	}
	if c.Heap.Limit > 0 && c.Heap.Limit < format.MinBlockSize {
		return fmt.Errorf("heap.limit %s is below the minimum block size", c.Heap.Limit)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Output.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("output.format must be text or json, got %q", c.Output.Format)
	}
	if _, err := c.LanguageTag(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level ("debug", "info", "warn", "error", or offsets
// such as "info+2").
func (c Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// LanguageTag parses Output.Language as a BCP 47 tag.
func (c Config) LanguageTag() (language.Tag, error) {
	if c.Output.Language == "" {
		return language.English, nil
	}
	tag, err := language.Parse(c.Output.Language)
	if err != nil {
		return language.Und, fmt.Errorf("output.language: %w", err)
	}
	return tag, nil
}

// LoggerOptions converts the log section for logger.Init.
func (c Config) LoggerOptions() logger.Options {
	lvl, _ := c.LogLevel()
	return logger.Options{
		Enabled: c.Log.Enabled,
		LogDir:  c.Log.Dir,
		Level:   lvl,
	}
}

// AllocConfig converts the heap section for alloc.New. The tracker and
// logger are left for the caller to attach.
func (c Config) AllocConfig() *alloc.Config {
	return &alloc.Config{
		GrowthChunk: c.Heap.GrowthChunk.Int(),
		Hardened:    c.Heap.Hardened,
	}
}
