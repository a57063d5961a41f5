// Package config loads gateway configuration from an optional config.yaml
// overlaid with NIDAAN_-prefixed environment variables. Double underscores
// in env names map to nesting, so NIDAAN_CHANNEL__ACCESS_TOKEN sets
// channel.access_token.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Channel   ChannelConfig   `koanf:"channel"`
	Speech    SpeechConfig    `koanf:"speech"`
	Reasoning ReasoningConfig `koanf:"reasoning"`
	Storage   StorageConfig   `koanf:"storage"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type ChannelConfig struct {
	VerifyToken   string `koanf:"verify_token"`
	AccessToken   string `koanf:"access_token"`
	PhoneNumberID string `koanf:"phone_number_id"`
	BaseURL       string `koanf:"base_url"`
}

type SpeechConfig struct {
	APIKey   string `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
	TTSVoice string `koanf:"tts_voice"`
}

type ReasoningConfig struct {
	Provider string `koanf:"provider"` // anthropic, openai
	APIKey   string `koanf:"api_key"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
}

type StorageConfig struct {
	SQLitePath string `koanf:"sqlite_path"`
	// Driver selects the session and dedup backend: memory or redis.
	Driver    string `koanf:"driver"`
	RedisAddr string `koanf:"redis_addr"`
}

type PipelineConfig struct {
	FallbackLanguage string `koanf:"fallback_language"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}
	// A missing file is fine; env vars can carry the whole config.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("NIDAAN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "NIDAAN_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"server.port":                8080,
		"reasoning.provider":         "anthropic",
		"storage.sqlite_path":        "conversations.db",
		"storage.driver":             "memory",
		"pipeline.fallback_language": "hi-IN",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	switch {
	case c.Channel.VerifyToken == "":
		return fmt.Errorf("channel.verify_token is required")
	case c.Channel.AccessToken == "":
		return fmt.Errorf("channel.access_token is required")
	case c.Channel.PhoneNumberID == "":
		return fmt.Errorf("channel.phone_number_id is required")
	case c.Speech.APIKey == "":
		return fmt.Errorf("speech.api_key is required")
	case c.Reasoning.APIKey == "":
		return fmt.Errorf("reasoning.api_key is required")
	}

	if p := c.Reasoning.Provider; p != "anthropic" && p != "openai" {
		return fmt.Errorf("unknown reasoning provider %q", p)
	}
	if d := c.Storage.Driver; d != "memory" && d != "redis" {
		return fmt.Errorf("unknown storage driver %q", d)
	}
	if c.Storage.Driver == "redis" && c.Storage.RedisAddr == "" {
		return fmt.Errorf("storage.redis_addr is required with the redis driver")
	}
	return nil
}
