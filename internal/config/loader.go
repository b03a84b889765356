package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/mcporter/mcporter/internal/envsubst"
)

const envPrefix = "MCPORTER_"

// Load reads configuration from defaults, optional file, and environment variables.
// Precedence: defaults < file < env.
func Load(path string) (AppConfig, error) {
	return loadConfig(path, nil)
}

// LoadWithOverrides reads configuration and applies explicit overrides (highest precedence).
func LoadWithOverrides(path string, overrides map[string]any) (AppConfig, error) {
	return loadConfig(path, overrides)
}

// loadConfig layers an AppConfig the way the rest of this module layers
// everything else config-shaped: struct defaults, then an optional YAML
// file (its ${VAR} placeholders resolved through the same envsubst rules
// the catalog uses for stdio env — spec.md §9 treats "a string with
// placeholders" as one concept, not two), then MCPORTER_-prefixed env vars,
// then explicit overrides.
func loadConfig(path string, overrides map[string]any) (AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultAppConfig(), "koanf"), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return AppConfig{}, err
		}
	}

	if err := k.Load(envKoanfProvider(), nil); err != nil {
		return AppConfig{}, fmt.Errorf("load env: %w", err)
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return AppConfig{}, fmt.Errorf("apply override %q: %w", key, err)
		}
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	// #nosec G304 -- config path is explicitly user-controlled (CLI/env) and is intended to be read.
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %q: %w", path, err)
	}

	expanded, err := envsubst.Resolve(string(b), envsubst.OSLookup)
	if err != nil {
		return fmt.Errorf("expand env in file %q: %w", path, err)
	}

	if err := k.Load(rawbytes.Provider([]byte(expanded)), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %q: %w", path, err)
	}
	return nil
}

func envKoanfProvider() koanf.Provider {
	return env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		// Only the section separator becomes a dot; underscores inside a
		// key name (client_name, default_timeout) belong to the key.
		for _, section := range []string{"catalog", "daemon", "http"} {
			if strings.HasPrefix(key, section+"_") {
				return section + "." + strings.TrimPrefix(key, section+"_")
			}
		}
		return key
	})
}

func unmarshal(k *koanf.Koanf) (AppConfig, error) {
	var cfg AppConfig
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	})
	if err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
