// Package config loads and validates the Estelar configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/estelar/internal/phrase"
	"gopkg.in/yaml.v3"
)

// Defaults mirror the values the visual was tuned with.
const (
	DefaultParticles     = 6000
	DefaultText          = "TE AMO"
	DefaultFPS           = 60
	DefaultStreamFPS     = 30
	DefaultFistThreshold = 0.18
	DefaultAddr          = ":8080"
)

// APIKeyEnvVars lists the environment variables consulted for the API key, in order.
var APIKeyEnvVars = []string{"ESTELAR_API_KEY", "API_KEY", "GEMINI_API_KEY"}

// Config is the root configuration document.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Field    FieldConfig    `yaml:"field"`
	Text     TextConfig     `yaml:"text"`
	Render   RenderConfig   `yaml:"render"`
	Phrase   PhraseConfig   `yaml:"phrase"`
	Server   ServerConfig   `yaml:"server"`
	Journal  JournalConfig  `yaml:"journal"`
	Audio    AudioConfig    `yaml:"audio"`
	Tray     TrayConfig     `yaml:"tray"`
}

type CameraConfig struct {
	DeviceID        int     `yaml:"device_id"`
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	MotionThreshold float64 `yaml:"motion_threshold"`
	Disabled        bool    `yaml:"disabled"`
}

type DetectorConfig struct {
	MaxHands        int     `yaml:"max_hands"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`
	FistThreshold   float64 `yaml:"fist_threshold"`
}

type FieldConfig struct {
	Particles int    `yaml:"particles"`
	Seed      uint64 `yaml:"seed"`
}

type TextConfig struct {
	Text      string  `yaml:"text"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FontSize  float64 `yaml:"font_size"`
	Stride    float64 `yaml:"stride"`
	Scale     float64 `yaml:"scale"`
	Threshold uint8   `yaml:"threshold"`
}

type RenderConfig struct {
	FPS       int     `yaml:"fps"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FOV       float64 `yaml:"fov"`
	CameraZ   float64 `yaml:"camera_z"`
	PointSize float64 `yaml:"point_size"`
}

type PhraseConfig struct {
	Model       string        `yaml:"model"`
	Prompt      string        `yaml:"prompt"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	// APIKey is normally left empty in the file and supplied through the environment.
	APIKey string `yaml:"api_key,omitempty"`
}

// ServiceConfig converts the section for phrase.New. The configured
// temperature is always passed through, zero included.
func (p PhraseConfig) ServiceConfig() phrase.Config {
	temperature := p.Temperature
	return phrase.Config{
		Model:       p.Model,
		Prompt:      p.Prompt,
		Temperature: &temperature,
		Timeout:     p.Timeout,
		APIKey:      p.APIKey,
	}
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	StreamFPS int    `yaml:"stream_fps"`
}

// JournalConfig enables the phrase journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"`
}

type AudioConfig struct {
	Enabled bool `yaml:"enabled"`
}

type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a Config populated with the default values.
func DefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			DeviceID:        0,
			Width:           640,
			Height:          480,
			MotionThreshold: 1.0,
		},
		Detector: DetectorConfig{
			MaxHands:        1,
			MinConfidence:   0.5,
			MinTrackingConf: 0.5,
			FistThreshold:   DefaultFistThreshold,
		},
		Field: FieldConfig{
			Particles: DefaultParticles,
		},
		Text: TextConfig{
			Text:      DefaultText,
			Width:     400,
			Height:    100,
			FontSize:  80,
			Stride:    1.5,
			Scale:     20,
			Threshold: 128,
		},
		Render: RenderConfig{
			FPS:       DefaultFPS,
			Width:     960,
			Height:    540,
			FOV:       75,
			CameraZ:   15,
			PointSize: 0.08,
		},
		Phrase: PhraseConfig{
			Model:       phrase.DefaultModel,
			Prompt:      phrase.DefaultPrompt,
			Temperature: phrase.DefaultTemperature,
			Timeout:     phrase.DefaultTimeout,
		},
		Server: ServerConfig{
			Addr:      DefaultAddr,
			StreamFPS: DefaultStreamFPS,
		},
	}
}

// Load reads a YAML config file on top of the defaults and applies the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadOrDefault loads path if it exists and falls back to the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		cfg, err := Load(path)
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes cfg to path as YAML. The API key is never written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Phrase.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultPath returns ~/.estelar/config.yaml, or an empty string when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".estelar", "config.yaml")
}

// ApplyEnv fills the API key from the environment when the file left it empty.
func (c *Config) ApplyEnv() {
	if c.Phrase.APIKey != "" {
		return
	}
	for _, name := range APIKeyEnvVars {
		if v := os.Getenv(name); v != "" {
			c.Phrase.APIKey = v
			return
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Field.Particles <= 0:
		return fmt.Errorf("field.particles must be positive, got %d", c.Field.Particles)
	case c.Text.Width <= 0 || c.Text.Height <= 0:
		return fmt.Errorf("text canvas must be non-empty, got %dx%d", c.Text.Width, c.Text.Height)
	case c.Text.Stride <= 0:
		return fmt.Errorf("text.stride must be positive, got %g", c.Text.Stride)
	case c.Text.Scale <= 0:
		return fmt.Errorf("text.scale must be positive, got %g", c.Text.Scale)
	case c.Render.FPS <= 0:
		return fmt.Errorf("render.fps must be positive, got %d", c.Render.FPS)
	case c.Render.Width <= 0 || c.Render.Height <= 0:
		return fmt.Errorf("render size must be non-empty, got %dx%d", c.Render.Width, c.Render.Height)
	case c.Render.FOV <= 0 || c.Render.FOV >= 180:
		return fmt.Errorf("render.fov must be in (0, 180), got %g", c.Render.FOV)
	case c.Detector.FistThreshold <= 0:
		return fmt.Errorf("detector.fist_threshold must be positive, got %g", c.Detector.FistThreshold)
	case c.Phrase.Temperature < 0 || c.Phrase.Temperature > 2:
		return fmt.Errorf("phrase.temperature must be in [0, 2], got %g", c.Phrase.Temperature)
	case c.Phrase.Timeout <= 0:
		return fmt.Errorf("phrase.timeout must be positive, got %s", c.Phrase.Timeout)
	case c.Server.StreamFPS <= 0:
		return fmt.Errorf("server.stream_fps must be positive, got %d", c.Server.StreamFPS)
	}
	return nil
}
