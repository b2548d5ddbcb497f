package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REGRID_"

// FileEnvVar overrides the config file path.
const FileEnvVar = EnvPrefix + "CONFIG_FILE"

// sliceKeys are parsed from comma-separated strings when set from the
// environment.
var sliceKeys = []string{KeyBackendOrder, KeyAdminAPIKeys}

// DefaultFile returns the config file used when neither an explicit path nor
// REGRID_CONFIG_FILE is given.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "regrid", "config.yaml")
}

// Load reads the layered configuration:
//  1. Defaults
//  2. YAML file at path, REGRID_CONFIG_FILE or DefaultFile (optional)
//  3. REGRID_* environment variables
//
// An explicitly named file must exist.
func Load(path string) (*Config, error) {
	k, err := load(path)
	if err != nil {
		return nil, err
	}
	return decode(k)
}

func load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	configPath, err := findFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := splitSlices(k); err != nil {
		return nil, err
	}
	return k, nil
}

func findFile(path string) (string, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(FileEnvVar)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFile()
	}
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return "", fmt.Errorf("config: %w", err)
		}
		return "", nil
	}
	return path, nil
}

// envKey maps REGRID_MATRIX_MEMORY_CACHE_POLICY to matrix-memory-cache-policy.
func envKey(s string) string {
	if s == FileEnvVar {
		return ""
	}
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "_", "-")
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	return nil
}

func decode(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.expand(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
