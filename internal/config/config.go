package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for hatbot.
type Config struct {
	General      GeneralConfig      `json:"general"`
	Media        MediaConfig        `json:"media"`
	Generation   GenerationConfig   `json:"generation"`
	Channels     ChannelsConfig     `json:"channels"`
	Perspectives PerspectivesConfig `json:"perspectives"`
	Metrics      MetricsConfig      `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel    string `json:"logLevel"`
	PaceDelayMs int    `json:"paceDelayMs"` // delay between perspective replies
}

// MediaConfig locates the two external generative-media services.
type MediaConfig struct {
	ImageBase      string `json:"imageBase"`
	VideoBase      string `json:"videoBase"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// GenerationConfig holds the default generation parameters; channels can
// adjust them at runtime via the settings commands.
type GenerationConfig struct {
	NumSteps   int     `json:"numSteps"`
	Guidance   float64 `json:"guidance"`
	NumFrames  int     `json:"numFrames"`
	VideoSteps int     `json:"numInferenceSteps"`
	FPS        int     `json:"fps"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	CLI      CLIConfig      `json:"cli"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

type CLIConfig struct {
	Enabled bool `json:"enabled"`
}

// PerspectivesConfig points at an optional directory of YAML template
// overrides for the six perspectives.
type PerspectivesConfig struct {
	PackDir string `json:"packDir,omitempty"`
}

// MetricsConfig configures the Prometheus-compatible metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.hatbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hatbot"
	}
	return filepath.Join(home, ".hatbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Perspectives.PackDir = ExpandPath(cfg.Perspectives.PackDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.PaceDelayMs < 0 || cfg.General.PaceDelayMs > 10000 {
		errs = append(errs, "general.paceDelayMs must be between 0 and 10000")
	}

	if cfg.Media.ImageBase == "" {
		errs = append(errs, "media.imageBase is required")
	}
	if cfg.Media.VideoBase == "" {
		errs = append(errs, "media.videoBase is required")
	}
	if cfg.Media.TimeoutSeconds < 1 {
		errs = append(errs, "media.timeoutSeconds must be >= 1")
	}

	if cfg.Generation.NumSteps < 1 {
		errs = append(errs, "generation.numSteps must be >= 1")
	}
	if cfg.Generation.Guidance <= 0 {
		errs = append(errs, "generation.guidance must be > 0")
	}
	if cfg.Generation.NumFrames < 1 {
		errs = append(errs, "generation.numFrames must be >= 1")
	}
	if cfg.Generation.VideoSteps < 1 {
		errs = append(errs, "generation.numInferenceSteps must be >= 1")
	}
	if cfg.Generation.FPS < 1 {
		errs = append(errs, "generation.fps must be >= 1")
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required when telegram is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
