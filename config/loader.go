package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CARPRICE_"

// ConfigEnv names the variable holding the YAML config path.
const ConfigEnv = EnvPrefix + "CONFIG"

// LoadOptions tunes Load.
type LoadOptions struct {
	// ConfigPath is a YAML file; when empty, CARPRICE_CONFIG is consulted.
	ConfigPath string
	// EnvFile is a dotenv file merged into the process environment first.
	// Variables already set win. A missing file is ignored.
	EnvFile string
	// Overrides are applied last, keyed like the koanf tags (e.g. "trees").
	Overrides map[string]any
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. YAML file, if one is configured
//  3. environment (CARPRICE_TREES -> trees)
//  4. explicit overrides (command-line flags)
//
// The result is validated before it is returned.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: env file %s: %v", ErrLoadConfig, opts.EnvFile, err)
			}
			slog.Debug("no env file, using process environment", "path", opts.EnvFile)
		}
	}

	k := koanf.New(".")

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Keys are flat, so underscores are kept and "." never occurs.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", ErrLoadConfig, err)
	}

	for key, v := range opts.Overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("%w: override %s: %v", ErrLoadConfig, key, err)
		}
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
