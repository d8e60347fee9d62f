// Package config loads the receiver configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lvatt/flowgraph/iq"
	"github.com/lvatt/flowgraph/signal"
)

// Defaults of the receiver.
const (
	DefaultSampleRate = 2000000
	DefaultFreq       = 446155200
	DefaultBufferSize = 4096
	DefaultInput      = "Input.iq"
	DefaultOutput     = "out.wav"
	DefaultFormat     = "cf32"
	DefaultBitDepth   = 16
)

// ErrInvalid is returned when a config value is invalid.
var ErrInvalid = errors.New("invalid config")

// Config of a receiver run.
type Config struct {
	SampleRate int     `yaml:"sample_rate"`
	Freq       float64 `yaml:"freq"`
	BufferSize int     `yaml:"buffer_size"`
	Input      string  `yaml:"input"`
	Format     string  `yaml:"format"`
	Output     string  `yaml:"output"`
	BitDepth   int     `yaml:"bit_depth"`
	// Metrics is the address that serves run counters on /debug/vars
	// while the run is active. Empty disables it.
	Metrics string `yaml:"metrics"`
}

// New returns config with default values.
func New() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Freq:       DefaultFreq,
		BufferSize: DefaultBufferSize,
		Input:      DefaultInput,
		Format:     DefaultFormat,
		Output:     DefaultOutput,
		BitDepth:   DefaultBitDepth,
	}
}

// Load reads the file on top of defaults and validates the result.
// Values that are not present in the file keep their defaults.
func Load(path string) (Config, error) {
	c := New()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks that values are usable. Constraints of the processing
// stages are checked when the graph is built.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, c.SampleRate)
	case c.Freq <= 0:
		return fmt.Errorf("%w: freq %v", ErrInvalid, c.Freq)
	case c.BufferSize <= 0:
		return fmt.Errorf("%w: buffer size %d", ErrInvalid, c.BufferSize)
	case c.Input == "":
		return fmt.Errorf("%w: empty input", ErrInvalid)
	case c.Output == "":
		return fmt.Errorf("%w: empty output", ErrInvalid)
	}
	if _, err := c.IQFormat(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if bd := signal.BitDepth(c.BitDepth); bd != signal.BitDepth16 && bd != signal.BitDepth32 {
		return fmt.Errorf("%w: bit depth %d", ErrInvalid, c.BitDepth)
	}
	return nil
}

// IQFormat returns the input format.
func (c Config) IQFormat() (iq.Format, error) {
	return iq.ParseFormat(c.Format)
}
