// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Audio     AudioConfig     `yaml:"audio"`
	Listener  ListenerConfig  `yaml:"listener"`
	Wake      WakeConfig      `yaml:"wake"`
	Inference InferenceConfig `yaml:"inference"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig contains the control API server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// AudioConfig contains capture settings.
type AudioConfig struct {
	SampleRate      int      `yaml:"sample_rate"`
	FrameSamples    int      `yaml:"frame_samples"`
	ExcludedDevices []string `yaml:"excluded_devices"`
}

// ListenerConfig contains utterance segmentation settings. Durations
// are in milliseconds to match how the knobs are usually discussed.
type ListenerConfig struct {
	SilenceThreshold   float64 `yaml:"silence_threshold"`
	SilenceDurationMS  int     `yaml:"silence_duration_ms"`
	MaxUtteranceMS     int     `yaml:"max_utterance_ms"`
	MinUtteranceMS     int     `yaml:"min_utterance_ms"`
	WakeGuardMS        int     `yaml:"wake_guard_ms"`
	InterruptThreshold float64 `yaml:"interrupt_threshold"`
	InterruptDebounce  int     `yaml:"interrupt_debounce"`
	SettleDelayMS      int     `yaml:"settle_delay_ms"`
}

// WakeConfig contains keyword spotting settings.
type WakeConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Keyword   string  `yaml:"keyword"`
	Threshold float32 `yaml:"threshold"`
}

// InferenceConfig points at the speech inference service.
type InferenceConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Language       string `yaml:"language"`
}

// SessionConfig contains push-to-talk settings.
type SessionConfig struct {
	Dir      string `yaml:"dir"`
	MinBytes int64  `yaml:"min_bytes"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Addr: ":8000"},
		Audio: AudioConfig{
			SampleRate:      16000,
			FrameSamples:    512,
			ExcludedDevices: []string{"iphone", "teams"},
		},
		Listener: ListenerConfig{
			SilenceThreshold:   200,
			SilenceDurationMS:  2500,
			MaxUtteranceMS:     60000,
			MinUtteranceMS:     500,
			WakeGuardMS:        300,
			InterruptThreshold: 500,
			InterruptDebounce:  3,
			SettleDelayMS:      300,
		},
		Wake: WakeConfig{
			Enabled:   true,
			Keyword:   "razor",
			Threshold: 0.5,
		},
		Inference: InferenceConfig{
			BaseURL:        "http://localhost:8100",
			TimeoutSeconds: 30,
		},
		Session: SessionConfig{
			Dir:      os.TempDir(),
			MinBytes: 16000,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Inference.BaseURL = getEnv("INFERENCE_URL", c.Inference.BaseURL)
	c.Audio.SampleRate = getEnvInt("SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.ExcludedDevices = getEnvList("EXCLUDED_AUDIO_DEVICES", c.Audio.ExcludedDevices)
	c.Wake.Enabled = getEnvBool("WAKE_ENABLED", c.Wake.Enabled)
	c.Wake.Keyword = getEnv("WAKE_KEYWORD", c.Wake.Keyword)
	c.Listener.SilenceThreshold = getEnvFloat("SILENCE_THRESHOLD", c.Listener.SilenceThreshold)
	c.Listener.InterruptThreshold = getEnvFloat("INTERRUPT_THRESHOLD", c.Listener.InterruptThreshold)
	c.Session.Dir = getEnv("SESSION_DIR", c.Session.Dir)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http: addr cannot be empty")
	}
	if err := c.Audio.validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Listener.validate(); err != nil {
		return fmt.Errorf("listener: %w", err)
	}
	if err := c.Wake.validate(); err != nil {
		return fmt.Errorf("wake: %w", err)
	}
	if err := c.Inference.validate(); err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	if err := c.Session.validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (a *AudioConfig) validate() error {
	if a.SampleRate != 8000 && a.SampleRate != 16000 && a.SampleRate != 44100 && a.SampleRate != 48000 {
		return fmt.Errorf("sample_rate must be one of [8000, 16000, 44100, 48000], got %d", a.SampleRate)
	}
	if a.FrameSamples < 128 || a.FrameSamples > 4096 {
		return fmt.Errorf("frame_samples must be between 128 and 4096, got %d", a.FrameSamples)
	}
	return nil
}

func (l *ListenerConfig) validate() error {
	if l.SilenceThreshold < 0 {
		return fmt.Errorf("silence_threshold cannot be negative, got %f", l.SilenceThreshold)
	}
	if l.SilenceDurationMS < 1 {
		return fmt.Errorf("silence_duration_ms must be positive, got %d", l.SilenceDurationMS)
	}
	if l.MaxUtteranceMS <= l.MinUtteranceMS {
		return fmt.Errorf("max_utterance_ms (%d) must exceed min_utterance_ms (%d)", l.MaxUtteranceMS, l.MinUtteranceMS)
	}
	if l.InterruptThreshold < l.SilenceThreshold {
		return fmt.Errorf("interrupt_threshold (%f) must be at least silence_threshold (%f)", l.InterruptThreshold, l.SilenceThreshold)
	}
	if l.InterruptDebounce < 1 {
		return fmt.Errorf("interrupt_debounce must be at least 1, got %d", l.InterruptDebounce)
	}
	if l.WakeGuardMS < 0 || l.SettleDelayMS < 0 {
		return fmt.Errorf("wake_guard_ms and settle_delay_ms cannot be negative")
	}
	return nil
}

func (w *WakeConfig) validate() error {
	if !w.Enabled {
		return nil
	}
	if w.Keyword == "" {
		return fmt.Errorf("keyword cannot be empty when wake is enabled")
	}
	if w.Threshold <= 0 || w.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %f", w.Threshold)
	}
	return nil
}

func (i *InferenceConfig) validate() error {
	if !strings.HasPrefix(i.BaseURL, "http://") && !strings.HasPrefix(i.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got %q", i.BaseURL)
	}
	if i.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1, got %d", i.TimeoutSeconds)
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if s.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}
	if s.MinBytes < 0 {
		return fmt.Errorf("min_bytes cannot be negative, got %d", s.MinBytes)
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be 'text' or 'json', got %q", l.Format)
	}
	return nil
}

// Duration accessors keep millisecond fields out of callers.

func (l *ListenerConfig) SilenceDuration() time.Duration {
	return time.Duration(l.SilenceDurationMS) * time.Millisecond
}

func (l *ListenerConfig) MaxUtterance() time.Duration {
	return time.Duration(l.MaxUtteranceMS) * time.Millisecond
}

func (l *ListenerConfig) MinUtterance() time.Duration {
	return time.Duration(l.MinUtteranceMS) * time.Millisecond
}

func (l *ListenerConfig) WakeGuard() time.Duration {
	return time.Duration(l.WakeGuardMS) * time.Millisecond
}

func (l *ListenerConfig) SettleDelay() time.Duration {
	return time.Duration(l.SettleDelayMS) * time.Millisecond
}

func (i *InferenceConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
