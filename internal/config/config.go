// Package config loads voicemart settings from defaults, an optional YAML
// file and VOICEMART_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/chriscow/voicemart/pkg/ai"
	"github.com/chriscow/voicemart/pkg/voice"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: VOICEMART_VOICE__MIN_CONFIDENCE sets voice.min_confidence.
const EnvPrefix = "VOICEMART_"

type Config struct {
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Voice    VoiceConfig    `koanf:"voice"`
	Feedback FeedbackConfig `koanf:"feedback"`

	// Phrases replaces the built-in phrase table when set.
	Phrases *voice.PhraseTable `koanf:"phrases"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
	// File, when set, receives a copy of every record in a rotated log.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type StorageConfig struct {
	// Path of the sqlite database. ":memory:" keeps everything in memory.
	Path string `koanf:"path" validate:"required"`
	Seed bool   `koanf:"seed"`
}

type RestartConfig struct {
	MaxRetries    int           `koanf:"max_retries" validate:"gte=0"`
	InitialDelay  time.Duration `koanf:"initial_delay" validate:"gt=0"`
	MaxDelay      time.Duration `koanf:"max_delay" validate:"gtefield=InitialDelay"`
	BackoffFactor float64       `koanf:"backoff_factor" validate:"gte=1"`
}

type VoiceConfig struct {
	Lang                   string        `koanf:"lang" validate:"required"`
	MinConfidence          int           `koanf:"min_confidence" validate:"gte=1,lte=100"`
	ScrollStep             int           `koanf:"scroll_step" validate:"gt=0"`
	ClearFocusOnDeactivate bool          `koanf:"clear_focus_on_deactivate"`
	MuteWhileSpeaking      bool          `koanf:"mute_while_speaking"`
	HistorySize            int           `koanf:"history_size" validate:"gte=1"`
	TranscriptClearAfter   time.Duration `koanf:"transcript_clear_after"`
	ImmediateEnd           time.Duration `koanf:"immediate_end" validate:"gt=0"`
	Restart                RestartConfig `koanf:"restart"`
}

type FeedbackConfig struct {
	// Provider names a registered tts plugin; "browser" speaks through the
	// connected page and "none" disables spoken feedback.
	Provider string `koanf:"provider" validate:"required"`
	Voice    string `koanf:"voice"`
	Model    string `koanf:"model"`
	APIKey   string `koanf:"api_key"`
}

var defaults = map[string]any{
	"log.level":       "info",
	"log.format":      "console",
	"log.max_size_mb": 20,
	"log.max_backups": 3,

	"server.addr":             ":8080",
	"server.shutdown_timeout": 5 * time.Second,

	"storage.path": "voicemart.db",
	"storage.seed": true,

	"voice.lang":                      "en-US",
	"voice.min_confidence":            voice.DefaultMinConfidence,
	"voice.scroll_step":               voice.DefaultScrollStep,
	"voice.clear_focus_on_deactivate": false,
	"voice.mute_while_speaking":       false,
	"voice.history_size":              50,
	"voice.transcript_clear_after":    2 * time.Second,
	"voice.immediate_end":             voice.DefaultImmediateEnd,
	"voice.restart.max_retries":       ai.DefaultRetryConfig.MaxRetries,
	"voice.restart.initial_delay":     ai.DefaultRetryConfig.InitialDelay,
	"voice.restart.max_delay":         ai.DefaultRetryConfig.MaxDelay,
	"voice.restart.backoff_factor":    ai.DefaultRetryConfig.BackoffFactor,

	"feedback.provider": "browser",
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg, err := load(koanf.New("."))
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads path (if it exists; an empty path skips the file), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	return load(k)
}

func load(k *koanf.Koanf) (*Config, error) {
	for key, v := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, v); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and, when present, the phrase table.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Phrases != nil {
		if err := c.Phrases.Validate(); err != nil {
			return fmt.Errorf("invalid phrases: %w", err)
		}
	}
	return nil
}

// Options converts the voice section into assistant options.
func (c *Config) Options() voice.Options {
	v := c.Voice
	clearAfter := v.TranscriptClearAfter
	if clearAfter == 0 {
		clearAfter = -1 // zero in the file means never clear
	}
	return voice.Options{
		Lang:                   v.Lang,
		MinConfidence:          v.MinConfidence,
		ScrollStep:             v.ScrollStep,
		ClearFocusOnDeactivate: v.ClearFocusOnDeactivate,
		MuteWhileSpeaking:      v.MuteWhileSpeaking,
		HistorySize:            v.HistorySize,
		TranscriptClearAfter:   clearAfter,
		ImmediateEnd:           v.ImmediateEnd,
		Voice:                  c.Feedback.Voice,
		Retry: ai.RetryConfig{
			MaxRetries:    v.Restart.MaxRetries,
			InitialDelay:  v.Restart.InitialDelay,
			MaxDelay:      v.Restart.MaxDelay,
			BackoffFactor: v.Restart.BackoffFactor,
		},
	}
}
