// Package config loads the per-corpus .typerecon.yaml file.
package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"github.com/DeusData/typerecon/internal/abi"
	"github.com/DeusData/typerecon/internal/resolve"
)

// FileName is looked up in the corpus root.
const FileName = ".typerecon.yaml"

var defaultExtensions = []string{".h", ".hpp", ".hh", ".c", ".cpp", ".cc", ".txt", ".idc"}

// Config holds user-overridable settings. Unset pointer fields fall back to
// defaults through the Effective accessors.
type Config struct {
	ABI      ABIConfig      `yaml:"abi"`
	Discover DiscoverConfig `yaml:"discover"`
	Parse    ParseConfig    `yaml:"parse"`
	Resolve  ResolveConfig  `yaml:"resolve"`
}

// ABIConfig describes the target data model.
type ABIConfig struct {
	// PointerSize in bytes. Default: 4.
	PointerSize *int64 `yaml:"pointer_size"`
	// EnumSize in bytes for enums without an underlying type. Default: 4.
	EnumSize *int64 `yaml:"enum_size"`
	// LongDoubleSize in bytes. Default: 8 (MSVC).
	LongDoubleSize *int64 `yaml:"long_double_size"`
}

// DiscoverConfig selects input files.
type DiscoverConfig struct {
	// Extensions replaces the default extension list when non-empty.
	Extensions []string `yaml:"extensions"`
	// Ignore holds glob patterns matched against slash-separated relative paths.
	Ignore []string `yaml:"ignore"`
}

// ParseConfig tunes phase one.
type ParseConfig struct {
	// Workers bounds parallel file parsing. Default: NumCPU.
	Workers *int `yaml:"workers"`
	// ScanBodies enables local variable extraction from function bodies.
	// Default: true.
	ScanBodies *bool `yaml:"scan_bodies"`
}

// ResolveConfig tunes phase two.
type ResolveConfig struct {
	CacheSize *int `yaml:"cache_size"`
}

// Default returns an empty config; every accessor yields its default.
func Default() *Config {
	return &Config{}
}

// Load reads .typerecon.yaml from dir.
// Returns the default config if the file is missing or invalid.
func Load(dir string) *Config {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default()
	}
	return cfg
}

// EffectiveABI returns the data model with defaults applied.
func (c *Config) EffectiveABI() abi.Model {
	m := abi.Default()
	if v := c.ABI.PointerSize; v != nil && *v > 0 {
		m.PointerSize = *v
	}
	if v := c.ABI.EnumSize; v != nil && *v > 0 {
		m.EnumSize = *v
	}
	if v := c.ABI.LongDoubleSize; v != nil && *v > 0 {
		m.LongDoubleSize = *v
	}
	return m
}

// EffectiveExtensions returns the configured extensions or the defaults.
func (c *Config) EffectiveExtensions() []string {
	if len(c.Discover.Extensions) > 0 {
		return c.Discover.Extensions
	}
	return defaultExtensions
}

// EffectiveWorkers returns the configured worker count, or NumCPU.
func (c *Config) EffectiveWorkers() int {
	if c.Parse.Workers != nil && *c.Parse.Workers > 0 {
		return *c.Parse.Workers
	}
	return runtime.NumCPU()
}

// EffectiveScanBodies returns the body scanning setting, or true.
func (c *Config) EffectiveScanBodies() bool {
	if c.Parse.ScanBodies != nil {
		return *c.Parse.ScanBodies
	}
	return true
}

// EffectiveCacheSize returns the resolver cache size, or the resolver default.
func (c *Config) EffectiveCacheSize() int {
	if c.Resolve.CacheSize != nil && *c.Resolve.CacheSize > 0 {
		return *c.Resolve.CacheSize
	}
	return resolve.DefaultCacheSize
}

// modelSettings are the effective settings that change the built model.
// Worker count and cache size only change how fast it is built.
type modelSettings struct {
	ABI        abi.Model `yaml:"abi"`
	Extensions []string  `yaml:"extensions"`
	Ignore     []string  `yaml:"ignore"`
	ScanBodies bool      `yaml:"scan_bodies"`
}

// Fingerprint returns a hex digest of the effective settings that affect the
// built model. Two configs with equal fingerprints build the same model from
// the same files.
func (c *Config) Fingerprint() string {
	data, err := yaml.Marshal(modelSettings{
		ABI:        c.EffectiveABI(),
		Extensions: c.EffectiveExtensions(),
		Ignore:     c.Discover.Ignore,
		ScanBodies: c.EffectiveScanBodies(),
	})
	if err != nil {
		return ""
	}
	h := xxh3.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
