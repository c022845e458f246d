package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"livescribe/language"
)

type Config struct {
	Provider        string     `yaml:"provider"` // auto, deepgram, openai, groq, azure, fake
	Language        string     `yaml:"language"` // display name from the picker table
	Prompt          string     `yaml:"prompt"`
	SpeechTimeoutMS int        `yaml:"speech_timeout_ms"`
	MaxDurationMS   int        `yaml:"max_duration_ms"`
	PartialEveryMS  int        `yaml:"partial_every_ms"`
	Device          string     `yaml:"device"`
	Beep            bool       `yaml:"beep"` // audible start/result/error cues
	LogPath         string     `yaml:"log_path"`
	MetricsBind     string     `yaml:"metrics_bind"`
	Bus             BusConfig  `yaml:"bus"`
	Keys            KeysConfig `yaml:"keys"`
}

type BusConfig struct {
	URL            string `yaml:"url"`
	Subject        string `yaml:"subject"`
	ConnectTimeout int    `yaml:"connect_timeout_ms"`
}

// KeysConfig holds backend credentials. The vendor environment variables
// (DEEPGRAM_API_KEY and friends) take precedence over the file.
type KeysConfig struct {
	Deepgram    string `yaml:"deepgram"`
	OpenAI      string `yaml:"openai"`
	Groq        string `yaml:"groq"`
	AzureKey    string `yaml:"azure_key"`
	AzureRegion string `yaml:"azure_region"`
}

var providers = []string{"auto", "deepgram", "openai", "groq", "azure", "fake"}

func Default() Config {
	return Config{
		Provider:        "auto",
		Language:        language.DefaultName,
		Prompt:          "Speak now...",
		SpeechTimeoutMS: 5000,
		MaxDurationMS:   60000,
		PartialEveryMS:  0,
		Beep:            true,
		Bus: BusConfig{
			Subject:        "livescribe.transcript",
			ConnectTimeout: 2000,
		},
	}
}

// Load reads path (if set) over the defaults and applies the environment.
// It does not validate: command-line flags still go on top, so callers
// run Validate once those are applied.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Provider, "LIVESCRIBE_PROVIDER")
	overrideString(&cfg.Language, "LIVESCRIBE_LANGUAGE")
	overrideString(&cfg.Prompt, "LIVESCRIBE_PROMPT")
	overrideInt(&cfg.SpeechTimeoutMS, "LIVESCRIBE_SPEECH_TIMEOUT_MS")
	overrideInt(&cfg.MaxDurationMS, "LIVESCRIBE_MAX_DURATION_MS")
	overrideInt(&cfg.PartialEveryMS, "LIVESCRIBE_PARTIAL_EVERY_MS")
	overrideString(&cfg.Device, "LIVESCRIBE_DEVICE")
	overrideBool(&cfg.Beep, "LIVESCRIBE_BEEP")
	overrideString(&cfg.LogPath, "LIVESCRIBE_LOG_PATH")
	overrideString(&cfg.MetricsBind, "LIVESCRIBE_METRICS_BIND")
	overrideString(&cfg.Bus.URL, "LIVESCRIBE_BUS_URL")
	overrideString(&cfg.Bus.Subject, "LIVESCRIBE_BUS_SUBJECT")
	overrideInt(&cfg.Bus.ConnectTimeout, "LIVESCRIBE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Keys.Deepgram, "DEEPGRAM_API_KEY")
	overrideString(&cfg.Keys.OpenAI, "OPENAI_API_KEY")
	overrideString(&cfg.Keys.Groq, "GROQ_API_KEY")
	overrideString(&cfg.Keys.AzureKey, "AZURE_SPEECH_KEY")
	overrideString(&cfg.Keys.AzureRegion, "AZURE_SPEECH_REGION")
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

// Validate checks a config after flags have been applied on top of it.
func (c Config) Validate() error {
	known := false
	for _, p := range providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("provider must be one of %s, got %q", strings.Join(providers, ", "), c.Provider)
	}
	if language.NewPicker(language.Entries).Index(c.Language) < 0 {
		return fmt.Errorf("unknown language %q", c.Language)
	}
	if c.SpeechTimeoutMS <= 0 {
		return errors.New("speech_timeout_ms must be positive")
	}
	if c.MaxDurationMS <= 0 {
		return errors.New("max_duration_ms must be positive")
	}
	if c.PartialEveryMS < 0 {
		return errors.New("partial_every_ms must not be negative")
	}
	if c.Bus.URL != "" && strings.TrimSpace(c.Bus.Subject) == "" {
		return errors.New("bus.subject must not be empty when bus.url is set")
	}
	return nil
}
