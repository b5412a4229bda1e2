// Package config loads the parley configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/parley/pkg/llm"
)

const (
	// DirName is the per-user directory holding config and data.
	DirName = ".parley"

	// FileName is the config file inside DirName.
	FileName = "config.toml"

	// DBFileName is the default SQLite database inside DirName.
	DBFileName = "parley.db"

	// APIKeyEnv overrides the configured backend API key.
	APIKeyEnv = "PARLEY_API_KEY"
)

// Backend kinds.
const (
	KindOllama = "ollama"
	KindOpenAI = "openai"
	KindEcho   = "echo"
)

// Config is the parley configuration.
type Config struct {
	// Listen is the API server address, e.g. ":8080".
	Listen string `toml:"listen"`

	// Database is the SQLite database path. ":memory:" keeps everything in
	// memory; empty selects ~/.parley/parley.db.
	Database string `toml:"database"`

	Debug bool `toml:"debug"`

	// SystemPrompt is sent ahead of every conversation.
	SystemPrompt string `toml:"system_prompt"`

	// Models is the catalog offered to clients. The first entry is the
	// default selection.
	Models []string `toml:"models"`

	Backend Backend      `toml:"backend"`
	Options *llm.Options `toml:"options"`
}

// Backend selects and addresses the model backend.
type Backend struct {
	Kind   string `toml:"kind"`
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Models: []string{"llama3.2"},
		Backend: Backend{
			Kind: KindOllama,
			URL:  "http://localhost:11434",
		},
	}
}

// Dir returns ~/.parley.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// DefaultPath returns ~/.parley/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the config file at path over the defaults. An empty path reads
// the default location, where a missing file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("could not read config %s: %w", path, err)
	default:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
		}
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.Backend.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values no component can run with.
func (c *Config) Validate() error {
	kinds := []string{KindOllama, KindOpenAI, KindEcho}
	if !slices.Contains(kinds, c.Backend.Kind) {
		return fmt.Errorf("backend kind %q is not one of %s", c.Backend.Kind, strings.Join(kinds, ", "))
	}
	if c.Backend.Kind == KindOpenAI && c.Backend.APIKey == "" {
		return fmt.Errorf("backend %q needs an api key (set %s)", KindOpenAI, APIKeyEnv)
	}
	if len(c.Models) == 0 {
		return errors.New("at least one model must be configured")
	}
	for _, m := range c.Models {
		if strings.TrimSpace(m) == "" {
			return errors.New("model names must not be empty")
		}
	}
	return nil
}

// Catalog returns the configured model catalog.
func (c *Config) Catalog() llm.ModelCatalog {
	return llm.ModelCatalog{Models: slices.Clone(c.Models)}
}
