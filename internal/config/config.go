package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// EnvToken is the environment variable holding the generation API bearer token
const EnvToken = "GENERATION_API_TOKEN"

// Config holds all application configuration
type Config struct {
	// Scratch directory handling
	Workspace WorkspaceConfig `yaml:"workspace"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Output settings
	Output OutputConfig `yaml:"output"`

	// Overlay text styling
	Overlay OverlayConfig `yaml:"overlay"`

	// Source download settings
	Fetch FetchConfig `yaml:"fetch"`

	// Remote generation API settings
	Generation GenerationConfig `yaml:"generation"`
}

type WorkspaceConfig struct {
	// Root is the parent directory for scratch dirs; empty means os.TempDir()
	Root string `yaml:"root"`
	// Retain keeps scratch dirs around after a run for debugging
	Retain bool `yaml:"retain"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
	Preset     string `yaml:"preset"`
	CRF        int    `yaml:"crf"`
}

type OutputConfig struct {
	Profile string `yaml:"profile"`
	Dir     string `yaml:"dir"`
}

type OverlayConfig struct {
	// Primary font size is min(width,height) / ScaleDivisor
	ScaleDivisor   int     `yaml:"scale_divisor"`
	SecondaryRatio float64 `yaml:"secondary_ratio"`
	LineSpacing    float64 `yaml:"line_spacing"`
}

type FetchConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

type GenerationConfig struct {
	APIURL          string  `yaml:"api_url"`
	NumSteps        int     `yaml:"num_steps"`
	CFGScale        float64 `yaml:"cfg_scale"`
	RandSeed        int     `yaml:"rand_seed"`
	PollIntervalSec int     `yaml:"poll_interval_sec"`
	PollAttempts    int     `yaml:"poll_attempts"`
}

// Load reads configuration from file or returns defaults. A .env file in the
// working directory is loaded first so the API token never lives in yaml.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Token returns the generation API bearer token from the environment
func Token() string {
	return os.Getenv(EnvToken)
}

// FetchTimeout returns the configured download timeout
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// PollInterval returns the configured status poll interval
func (g GenerationConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSec) * time.Second
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root:   "",
			Retain: false,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
			Preset:     "medium",
			CRF:        23,
		},
		Output: OutputConfig{
			Profile: "mp4",
			Dir:     ".",
		},
		Overlay: OverlayConfig{
			ScaleDivisor:   12,
			SecondaryRatio: 0.4,
			LineSpacing:    0.5,
		},
		Fetch: FetchConfig{
			TimeoutSec: 300,
		},
		Generation: GenerationConfig{
			APIURL:          "https://api.rhymes.ai/v1",
			NumSteps:        100,
			CFGScale:        7.5,
			RandSeed:        12345,
			PollIntervalSec: 5,
			PollAttempts:    60,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".titlecannon", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
