package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the storytotest configuration file.
const ConfigFileName = "storytotest.toml"

// FindConfigFile walks up from startDir looking for storytotest.toml.
// It returns an empty path, not an error, when no file exists up to the root.
func FindConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadFromFile parses the TOML file at path. The returned metadata reports
// which keys were present and which were not recognised.
func LoadFromFile(path string) (*Config, toml.MetaData, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, md, fmt.Errorf("loading config %s: %w", path, err)
	}
	return &cfg, md, nil
}

// Load finds, parses and resolves configuration in one call. explicitPath
// wins over discovery from startDir. The metadata is nil when no file was
// used.
func Load(explicitPath, startDir string, envFn EnvFunc, overrides *CLIOverrides) (*ResolvedConfig, *toml.MetaData, error) {
	path := explicitPath
	if path == "" {
		found, err := FindConfigFile(startDir)
		if err != nil {
			return nil, nil, err
		}
		path = found
	}

	var (
		fileCfg *Config
		meta    *toml.MetaData
	)
	if path != "" {
		cfg, md, err := LoadFromFile(path)
		if err != nil {
			return nil, nil, err
		}
		fileCfg = cfg
		meta = &md
	}

	rc := Resolve(NewDefaults(), fileCfg, meta, envFn, overrides)
	rc.Path = path
	return rc, meta, nil
}
