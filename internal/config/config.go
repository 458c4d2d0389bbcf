// Package config loads the runtime configuration: host allocator tuning,
// which GPU backends to open, and which targets must be available.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/devrt/internal/backend/host"
	"github.com/born-ml/devrt/internal/place"
)

// Config drives platform startup.
type Config struct {
	Host   HostConfig   `yaml:"host"`
	CUDA   CUDAConfig   `yaml:"cuda"`
	WebGPU WebGPUConfig `yaml:"webgpu"`
	// Require lists target names that must have a backend at startup.
	Require []string `yaml:"require"`
}

// HostConfig tunes the host backend.
type HostConfig struct {
	Alignment         int `yaml:"alignment"`
	MaxPooled         int `yaml:"max_pooled"`
	ParallelThreshold int `yaml:"parallel_threshold"`
	Workers           int `yaml:"workers"`
}

// CUDAConfig controls the CUDA backend.
type CUDAConfig struct {
	Enabled bool `yaml:"enabled"`
	// Library overrides the driver library path.
	Library    string `yaml:"library"`
	Device     int    `yaml:"device"`
	MaxStreams int    `yaml:"max_streams"`
}

// WebGPUConfig controls the WebGPU backend.
type WebGPUConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Defaults returns the baseline configuration: every backend enabled, only
// the host required.
func Defaults() Config {
	hc := host.DefaultConfig()
	return Config{
		Host: HostConfig{
			Alignment:         hc.Alignment,
			MaxPooled:         hc.MaxPooled,
			ParallelThreshold: hc.ParallelThreshold,
			Workers:           hc.Workers,
		},
		CUDA:    CUDAConfig{Enabled: true, MaxStreams: 16},
		WebGPU:  WebGPUConfig{Enabled: true},
		Require: []string{place.TargetHost.String()},
	}
}

// HostBackend converts the host section to the backend's configuration.
func (c Config) HostBackend() host.Config {
	return host.Config{
		Alignment:         c.Host.Alignment,
		MaxPooled:         c.Host.MaxPooled,
		ParallelThreshold: c.Host.ParallelThreshold,
		Workers:           c.Host.Workers,
	}
}

// RequiredTargets parses Require.
func (c Config) RequiredTargets() ([]place.Target, error) {
	out := make([]place.Target, 0, len(c.Require))
	for _, name := range c.Require {
		t, err := place.ParseTarget(name)
		if err != nil {
			return nil, errors.Wrap(err, "config: require")
		}
		if !t.Concrete() {
			return nil, errors.Errorf("config: require: %q is not a concrete target", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Validate ensures the config is usable.
func (c Config) Validate() error {
	if err := c.HostBackend().Validate(); err != nil {
		return errors.Wrap(err, "config")
	}
	if c.CUDA.Device < 0 {
		return errors.Errorf("config: cuda device %d must be >= 0", c.CUDA.Device)
	}
	if c.CUDA.MaxStreams < 0 {
		return errors.Errorf("config: cuda max_streams %d must be >= 0", c.CUDA.MaxStreams)
	}
	_, err := c.RequiredTargets()
	return err
}

// Parse decodes YAML on top of Defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: read")
	}
	return Parse(data)
}
