package editor

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds editor settings. It is usually loaded from YAML next to the
// plugin; the callbacks can only be set from code.
type Config struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	MinWidth   int    `yaml:"min_width"`
	MinHeight  int    `yaml:"min_height"`
	MaxWidth   int    `yaml:"max_width"`
	MaxHeight  int    `yaml:"max_height"`
	FrameRate  int    `yaml:"frame_rate"`
	AutoSize   bool   `yaml:"auto_size"`  // size the window to the rendered view
	CellWidth  int    `yaml:"cell_width"` // logical pixels per view column
	CellHeight int    `yaml:"cell_height"`
	LogLevel   string `yaml:"log_level"`

	// FrameMessages sends the model a FrameMsg on every frame of the native
	// clock, for views that animate.
	FrameMessages bool `yaml:"frame_messages"`

	// OnFault is called once, after the editor has closed, when a session
	// ended with a RuntimeFault.
	OnFault func(error) `yaml:"-"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Title:      "Plugin Editor",
		Width:      640,
		Height:     400,
		MinWidth:   400,
		MinHeight:  300,
		MaxWidth:   4096,
		MaxHeight:  4096,
		FrameRate:  60,
		CellWidth:  8,
		CellHeight: 16,
		LogLevel:   "info",
	}
}

// LoadConfig decodes YAML over the defaults. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("error parsing editor config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid editor config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("error opening editor config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.MinWidth < 0 || c.MinHeight < 0 {
		return fmt.Errorf("minimum size must not be negative")
	}
	if c.MaxWidth < c.MinWidth || c.MaxHeight < c.MinHeight {
		return fmt.Errorf("maximum size %dx%d below minimum %dx%d",
			c.MaxWidth, c.MaxHeight, c.MinWidth, c.MinHeight)
	}
	if c.FrameRate <= 0 || c.FrameRate > 240 {
		return fmt.Errorf("frame_rate must be in 1-240, got %d", c.FrameRate)
	}
	if c.AutoSize && (c.CellWidth <= 0 || c.CellHeight <= 0) {
		return fmt.Errorf("auto_size needs positive cell_width and cell_height")
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) bounds() (min, max Size) {
	return Size{c.MinWidth, c.MinHeight}, Size{c.MaxWidth, c.MaxHeight}
}
