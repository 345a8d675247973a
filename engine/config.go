package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's stream format and timing knobs. Zero values are
// replaced by defaults, so a partial YAML file is enough.
type Config struct {
	SampleRate float64 `yaml:"sample_rate"`
	Channels   int     `yaml:"channels"`

	// BlockFrames is the preferred processing granularity. Callers may pass
	// any frame count to Process; this only sizes the demo and ring defaults.
	BlockFrames int `yaml:"block_frames"`

	// TransitionSamples is the structural crossfade window length.
	TransitionSamples int `yaml:"transition_samples"`

	// GainFadeSamples is the window for connection-gain-only edits.
	GainFadeSamples int `yaml:"gain_fade_samples"`

	// Debounce is how long after the last edit a publish fires. Commit
	// bypasses it.
	Debounce time.Duration `yaml:"debounce"`

	RingCapacityFrames int `yaml:"ring_capacity_frames"`
	RingPrimingFrames  int `yaml:"ring_priming_frames"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the stock 48 kHz stereo configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:         48000,
		Channels:           2,
		BlockFrames:        512,
		TransitionSamples:  480,
		GainFadeSamples:    128,
		Debounce:           25 * time.Millisecond,
		RingCapacityFrames: 8192,
		RingPrimingFrames:  1024,
		LogLevel:           "info",
	}
}

// LoadConfig reads a YAML config file, filling defaults for absent fields.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("engine: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}

	if c.Channels < 1 {
		c.Channels = def.Channels
	}

	if c.BlockFrames <= 0 {
		c.BlockFrames = def.BlockFrames
	}

	if c.TransitionSamples <= 0 {
		c.TransitionSamples = def.TransitionSamples
	}

	if c.GainFadeSamples <= 0 {
		c.GainFadeSamples = def.GainFadeSamples
	}

	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}

	if c.RingCapacityFrames <= 0 {
		c.RingCapacityFrames = def.RingCapacityFrames
	}

	if c.RingPrimingFrames <= 0 {
		c.RingPrimingFrames = def.RingPrimingFrames
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}

	return c
}
