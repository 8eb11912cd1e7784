// Package config loads the assistant's configuration: defaults, an
// optional YAML file, then KIM_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Model struct {
		// Path is a filesystem path to a Vosk model directory, or a
		// known model name resolved against the models directory.
		Path string `yaml:"path"`
	} `yaml:"model"`

	Audio struct {
		SampleRate int `yaml:"sample_rate"`
		FrameSize  int `yaml:"frame_size"`
		// DeviceIndex selects a capture device; nil means system default.
		DeviceIndex *int `yaml:"device_index"`
	} `yaml:"audio"`

	Wake struct {
		Phrase string `yaml:"phrase"`
		// ConfidenceThreshold is reserved for per-trigger scoring and is
		// validated but not consulted by the current matcher.
		ConfidenceThreshold  float64 `yaml:"confidence_threshold"`
		DebounceSeconds      float64 `yaml:"debounce_seconds"`
		MinHotwordConfidence float64 `yaml:"min_hotword_confidence"`
		MinChars             int     `yaml:"min_chars"`
		StrictWordMatch      bool    `yaml:"strict_word_match"`
		AdaptiveThreshold    bool    `yaml:"adaptive_threshold"`
		NoiseFloorWindow     int     `yaml:"noise_floor_window"`
		MinConfidenceFloor   float64 `yaml:"min_confidence_floor"`
		MaxConfidenceFloor   float64 `yaml:"max_confidence_floor"`
	} `yaml:"wake"`

	Capture struct {
		MaxPhraseDurationSeconds float64 `yaml:"max_phrase_duration_seconds"`
		SilenceTimeoutSeconds    float64 `yaml:"silence_timeout_seconds"`
		MinPhraseChars           int     `yaml:"min_phrase_chars"`
		MinAvgConfidence         float64 `yaml:"min_avg_confidence"`
		MaxRetries               int     `yaml:"max_retries"`
		UseVAD                   bool    `yaml:"use_vad"`
		VADThreshold             float64 `yaml:"vad_threshold"`
	} `yaml:"capture"`

	Confirm struct {
		// RejectionWords override the built-in rejection token set when
		// non-empty.
		RejectionWords []string `yaml:"rejection_words"`
	} `yaml:"confirm"`

	Speaker struct {
		// Command is an external TTS command fed text on stdin. Empty
		// means console output.
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
	} `yaml:"speaker"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`

	// LocalOnly disables any networked dispatch; commands are handled
	// with the built-in local responses.
	LocalOnly bool `yaml:"local_only"`
}

// Default returns the configuration defaults.
func Default() *Config {
	cfg := &Config{}

	cfg.Audio.SampleRate = 16000
	cfg.Audio.FrameSize = 4000

	cfg.Wake.Phrase = "kim"
	cfg.Wake.ConfidenceThreshold = 0.7
	cfg.Wake.DebounceSeconds = 1.2
	cfg.Wake.MinHotwordConfidence = 0.5
	cfg.Wake.MinChars = 2
	cfg.Wake.StrictWordMatch = true
	cfg.Wake.AdaptiveThreshold = true
	cfg.Wake.NoiseFloorWindow = 100
	cfg.Wake.MinConfidenceFloor = 0.5
	cfg.Wake.MaxConfidenceFloor = 0.9

	cfg.Capture.MaxPhraseDurationSeconds = 10.0
	cfg.Capture.SilenceTimeoutSeconds = 1.5
	cfg.Capture.MinPhraseChars = 5
	cfg.Capture.MinAvgConfidence = 0.6
	cfg.Capture.MaxRetries = 2
	cfg.Capture.UseVAD = false
	cfg.Capture.VADThreshold = 0.01

	cfg.Logging.Level = "info"
	cfg.LocalOnly = true

	return cfg
}

// Load reads configuration from the given file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadWithFallback attempts configuration from multiple locations.
// Priority: explicit path > ~/.kimrc > /etc/kim/config.yaml > defaults.
// A .env file in the working directory is loaded first so env overrides
// can live there.
func LoadWithFallback(explicitPath string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	if explicitPath != "" {
		return Load(explicitPath)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".kimrc")
		if _, err := os.Stat(userPath); err == nil {
			if cfg, err := Load(userPath); err == nil {
				return cfg, nil
			}
		}
	}

	systemPath := "/etc/kim/config.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		if cfg, err := Load(systemPath); err == nil {
			return cfg, nil
		}
	}

	cfg := Default()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run
// with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FrameSize <= 0 {
		return fmt.Errorf("audio.frame_size must be positive, got %d", c.Audio.FrameSize)
	}
	if strings.TrimSpace(c.Wake.Phrase) == "" {
		return fmt.Errorf("wake.phrase must not be empty")
	}
	if c.Wake.ConfidenceThreshold < 0 || c.Wake.ConfidenceThreshold > 1 {
		return fmt.Errorf("wake.confidence_threshold must be in [0,1], got %v", c.Wake.ConfidenceThreshold)
	}
	if c.Wake.DebounceSeconds < 0 {
		return fmt.Errorf("wake.debounce_seconds must not be negative, got %v", c.Wake.DebounceSeconds)
	}
	if c.Wake.MinHotwordConfidence < 0 || c.Wake.MinHotwordConfidence > 1 {
		return fmt.Errorf("wake.min_hotword_confidence must be in [0,1], got %v", c.Wake.MinHotwordConfidence)
	}
	if c.Wake.MinChars < 0 {
		return fmt.Errorf("wake.min_chars must not be negative, got %d", c.Wake.MinChars)
	}
	if c.Wake.NoiseFloorWindow <= 0 {
		return fmt.Errorf("wake.noise_floor_window must be positive, got %d", c.Wake.NoiseFloorWindow)
	}
	if c.Wake.MinConfidenceFloor > c.Wake.MaxConfidenceFloor {
		return fmt.Errorf("wake.min_confidence_floor %v exceeds wake.max_confidence_floor %v",
			c.Wake.MinConfidenceFloor, c.Wake.MaxConfidenceFloor)
	}
	if c.Capture.MaxPhraseDurationSeconds <= 0 {
		return fmt.Errorf("capture.max_phrase_duration_seconds must be positive, got %v", c.Capture.MaxPhraseDurationSeconds)
	}
	if c.Capture.SilenceTimeoutSeconds <= 0 {
		return fmt.Errorf("capture.silence_timeout_seconds must be positive, got %v", c.Capture.SilenceTimeoutSeconds)
	}
	if c.Capture.MinPhraseChars < 0 {
		return fmt.Errorf("capture.min_phrase_chars must not be negative, got %d", c.Capture.MinPhraseChars)
	}
	if c.Capture.MinAvgConfidence < 0 || c.Capture.MinAvgConfidence > 1 {
		return fmt.Errorf("capture.min_avg_confidence must be in [0,1], got %v", c.Capture.MinAvgConfidence)
	}
	if c.Capture.MaxRetries < 0 {
		return fmt.Errorf("capture.max_retries must not be negative, got %d", c.Capture.MaxRetries)
	}
	return nil
}

// Debounce returns the wake debounce interval as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Wake.DebounceSeconds * float64(time.Second))
}

// MaxPhraseDuration returns the capture duration cap as a duration.
func (c *Config) MaxPhraseDuration() time.Duration {
	return time.Duration(c.Capture.MaxPhraseDurationSeconds * float64(time.Second))
}

// SilenceTimeout returns the silence endpoint as a duration.
func (c *Config) SilenceTimeout() time.Duration {
	return time.Duration(c.Capture.SilenceTimeoutSeconds * float64(time.Second))
}

func (c *Config) applyEnvOverrides() {
	overrideString(&c.Model.Path, "KIM_MODEL_PATH")
	overrideInt(&c.Audio.SampleRate, "KIM_AUDIO_SAMPLE_RATE")
	overrideInt(&c.Audio.FrameSize, "KIM_AUDIO_FRAME_SIZE")
	overrideString(&c.Wake.Phrase, "KIM_WAKE_PHRASE")
	overrideFloat(&c.Wake.DebounceSeconds, "KIM_WAKE_DEBOUNCE_SECONDS")
	overrideFloat(&c.Wake.MinHotwordConfidence, "KIM_WAKE_MIN_HOTWORD_CONFIDENCE")
	overrideBool(&c.Wake.StrictWordMatch, "KIM_WAKE_STRICT_WORD_MATCH")
	overrideBool(&c.Wake.AdaptiveThreshold, "KIM_WAKE_ADAPTIVE_THRESHOLD")
	overrideFloat(&c.Capture.MaxPhraseDurationSeconds, "KIM_CAPTURE_MAX_PHRASE_DURATION_SECONDS")
	overrideFloat(&c.Capture.SilenceTimeoutSeconds, "KIM_CAPTURE_SILENCE_TIMEOUT_SECONDS")
	overrideInt(&c.Capture.MinPhraseChars, "KIM_CAPTURE_MIN_PHRASE_CHARS")
	overrideFloat(&c.Capture.MinAvgConfidence, "KIM_CAPTURE_MIN_AVG_CONFIDENCE")
	overrideInt(&c.Capture.MaxRetries, "KIM_CAPTURE_MAX_RETRIES")
	overrideBool(&c.Capture.UseVAD, "KIM_CAPTURE_USE_VAD")
	overrideString(&c.Speaker.Command, "KIM_SPEAKER_COMMAND")
	overrideString(&c.Logging.Level, "KIM_LOG_LEVEL")
	overrideString(&c.Logging.File, "KIM_LOG_FILE")
	overrideBool(&c.LocalOnly, "KIM_LOCAL_ONLY")

	if value, ok := os.LookupEnv("KIM_AUDIO_DEVICE_INDEX"); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			c.Audio.DeviceIndex = &parsed
		}
	}
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}
