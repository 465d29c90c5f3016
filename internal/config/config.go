// Package config loads and saves the host's window/audio/input
// settings as JSON, in the teacher's hand-rolled config style (no
// ecosystem config library appears anywhere in the retrieval pack).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the host's presentation-layer settings. It has no
// opinion about emulation correctness, only how the window/audio
// device look and feel.
type Config struct {
	Window WindowConfig `json:"window"`
	Audio  AudioConfig  `json:"audio"`
	Input  InputConfig  `json:"input"`

	path string
}

// WindowConfig controls the ebiten window.
type WindowConfig struct {
	Scale      int  `json:"scale"` // NES resolution multiplier
	Fullscreen bool `json:"fullscreen"`
	VSync      bool `json:"vsync"`
}

// AudioConfig controls the streaming audio player.
type AudioConfig struct {
	Enabled    bool    `json:"enabled"`
	SampleRate int     `json:"sample_rate"`
	Volume     float32 `json:"volume"`
}

// InputConfig controls keyboard-to-button mapping behavior.
type InputConfig struct {
	Player2Enabled bool `json:"player2_enabled"`
}

// New returns a Config with reasonable defaults.
func New() *Config {
	return &Config{
		Window: WindowConfig{Scale: 3, VSync: true},
		Audio:  AudioConfig{Enabled: true, SampleRate: 44100, Volume: 0.8},
		Input:  InputConfig{Player2Enabled: false},
	}
}

// LoadFromFile loads configuration from path, writing defaults there
// first if the file doesn't yet exist.
func (c *Config) LoadFromFile(path string) error {
	c.path = path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	c.validate()
	return nil
}

// SaveToFile writes the configuration to path as indented JSON.
func (c *Config) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	c.path = path
	return nil
}

func (c *Config) validate() {
	if c.Window.Scale <= 0 {
		c.Window.Scale = 3
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 44100
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		c.Audio.Volume = 0.8
	}
}

// WindowResolution returns the scaled window size for the NES's
// fixed 256x240 frame.
func (c *Config) WindowResolution() (width, height int) {
	return 256 * c.Window.Scale, 240 * c.Window.Scale
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return "./config/nespresso.json"
}
