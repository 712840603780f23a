package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds runtime configuration for the frame relay and its sinks.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Source selection: "synthetic" or "screen".
	Source string `json:"source"`
	FPS    int    `json:"fps"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Optional capture rectangle for the screen source.
	SelectionX int `json:"selection_x"`
	SelectionY int `json:"selection_y"`
	SelectionW int `json:"selection_w"`
	SelectionH int `json:"selection_h"`

	// Processing
	Operation string `json:"operation"`
	Color     bool   `json:"color"`
	Overlay   bool   `json:"overlay"`

	// Relay tuning
	OpenTimeoutMs int     `json:"open_timeout_ms"`
	IdleWaitMs    int     `json:"idle_wait_ms"`
	ProfileEvery  int     `json:"profile_every"`
	Decay         float64 `json:"decay"`
	WarmUp        int     `json:"warm_up"`

	// Sinks
	HTTPAddr string `json:"http_addr"`
	Preview  bool   `json:"preview"`

	// Operation parameters
	BlurSigma       float64 `json:"blur_sigma"`
	TrackTemplatePx int     `json:"track_template_px"`
	TrackThreshold  float64 `json:"track_threshold"`
	TrackStride     int     `json:"track_stride"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:           false,
		Source:          "synthetic",
		FPS:             30,
		Width:           640,
		Height:          480,
		Operation:       "edge",
		Color:           true,
		Overlay:         true,
		OpenTimeoutMs:   10000,
		IdleWaitMs:      0,
		ProfileEvery:    500,
		Decay:           0.95,
		WarmUp:          3,
		HTTPAddr:        "",
		Preview:         false,
		BlurSigma:       2.0,
		TrackTemplatePx: 48,
		TrackThreshold:  0.6,
		TrackStride:     2,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.Source == "" {
		c.Source = "synthetic"
	}
	if c.FPS <= 0 || c.FPS > 240 {
		c.FPS = 30
	}
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.SelectionW < 0 {
		c.SelectionW = 0
	}
	if c.SelectionH < 0 {
		c.SelectionH = 0
	}
	if c.Operation == "" {
		c.Operation = "edge"
	}
	if c.OpenTimeoutMs <= 0 {
		c.OpenTimeoutMs = 10000
	}
	if c.IdleWaitMs < 0 {
		c.IdleWaitMs = 0
	}
	if c.ProfileEvery <= 0 {
		c.ProfileEvery = 500
	}
	if c.Decay <= 0 || c.Decay >= 1 {
		c.Decay = 0.95
	}
	if c.WarmUp < 0 {
		c.WarmUp = 0
	}
	if c.BlurSigma <= 0 {
		c.BlurSigma = 2.0
	}
	if c.TrackTemplatePx < 8 {
		c.TrackTemplatePx = 48
	}
	if c.TrackThreshold <= 0 || c.TrackThreshold > 1 {
		c.TrackThreshold = 0.6
	}
	if c.TrackStride <= 0 {
		c.TrackStride = 2
	}
	return nil
}

// OpenTimeout is the bound applied while a source negotiates its format.
func (c *Config) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutMs) * time.Millisecond
}

// IdleWait is the bounded wait used by the worker when no new frame is ready.
// Zero means the worker only yields.
func (c *Config) IdleWait() time.Duration {
	return time.Duration(c.IdleWaitMs) * time.Millisecond
}

// FrameInterval is the capture period implied by FPS.
func (c *Config) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.FPS)
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
