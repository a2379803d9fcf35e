package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "chapterforge"

type Config struct {
	AI     AIConfig     `yaml:"ai" validate:"required"`
	Paths  PathsConfig  `yaml:"paths"`
	Store  StoreConfig  `yaml:"store"`
	Limits Limits       `yaml:"limits"`
	Server ServerConfig `yaml:"server"`
}

type AIConfig struct {
	Provider  string `yaml:"provider" validate:"required,oneof=openai anthropic ollama"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model" validate:"required"`
	BaseURL   string `yaml:"base_url" validate:"required,url"`
	Timeout   int    `yaml:"timeout" validate:"min=10,max=3600"`
	MaxTokens int    `yaml:"max_tokens" validate:"min=256,max=200000"`
}

type PathsConfig struct {
	DataDir    string `yaml:"data_dir" validate:"required"`
	Database   string `yaml:"database" validate:"required"`
	PromptsDir string `yaml:"prompts_dir"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=sqlite files"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// Load reads the config file at path, or the default location when path is empty.
// A missing file yields the built-in defaults for the provider named by CHAPTERFORGE_PROVIDER.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	var cfg Config
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default(os.Getenv("CHAPTERFORGE_PROVIDER"))
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.AI.APIKey = resolveAPIKey(cfg.AI.Provider, cfg.AI.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// ConfigPath returns $CHAPTERFORGE_CONFIG, else the XDG location of config.yaml.
func ConfigPath() string {
	if path := os.Getenv("CHAPTERFORGE_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, "config.yaml")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, "config.yaml")
}

func dataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// expandTilde expands a tilde (~) at the beginning of a path to the user's home directory
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Default returns a complete configuration for the given provider (anthropic when empty).
func Default(provider string) Config {
	cfg := Config{
		Limits: DefaultLimits(),
		Store:  StoreConfig{Driver: "sqlite"},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
	}
	switch provider {
	case "openai":
		cfg.AI = AIConfig{Provider: "openai", Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"}
	case "ollama":
		cfg.AI = AIConfig{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434"}
	default:
		cfg.AI = AIConfig{Provider: "anthropic", Model: "claude-3-5-sonnet-20241022", BaseURL: "https://api.anthropic.com/v1"}
	}
	cfg.AI.Timeout = 600
	cfg.AI.MaxTokens = 4096
	cfg.setupDefaultPaths()
	return cfg
}

func (c *Config) setupDefaultPaths() {
	c.Paths.DataDir = dataHome()
	c.Paths.Database = filepath.Join(c.Paths.DataDir, "stories.db")
	c.Paths.PromptsDir = filepath.Join(c.Paths.DataDir, "prompts")
}

// resolveAPIKey expands a ${VAR} placeholder or, when the key is empty, falls back to
// CHAPTERFORGE_API_KEY and then the provider's conventional variable.
func resolveAPIKey(provider, key string) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		key = os.Getenv(key[2 : len(key)-1])
	}
	if key != "" {
		return key
	}
	if v := os.Getenv("CHAPTERFORGE_API_KEY"); v != "" {
		return v
	}
	if name := providerKeyVar(provider); name != "" {
		return os.Getenv(name)
	}
	return ""
}

func providerKeyVar(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	}
	return ""
}

func (c *Config) validate() error {
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = dataHome()
	} else {
		c.Paths.DataDir = expandTilde(c.Paths.DataDir)
	}
	if c.Paths.Database == "" {
		c.Paths.Database = filepath.Join(c.Paths.DataDir, "stories.db")
	} else {
		c.Paths.Database = expandTilde(c.Paths.Database)
	}
	if c.Paths.PromptsDir != "" {
		c.Paths.PromptsDir = expandTilde(c.Paths.PromptsDir)
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 600
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 4096
	}
	c.Limits.fill()

	validate := validator.New()
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		ai := sl.Current().Interface().(AIConfig)
		if ai.Provider != "ollama" && len(ai.APIKey) < 20 {
			sl.ReportError(ai.APIKey, "APIKey", "api_key", "apikey", "")
		}
	}, AIConfig{})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// Save writes cfg to path with the API key replaced by an environment placeholder.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfgToSave := *cfg
	cfgToSave.AI.APIKey = ""
	if name := providerKeyVar(cfg.AI.Provider); name != "" {
		cfgToSave.AI.APIKey = "${" + name + "}"
	}

	data, err := yaml.Marshal(&cfgToSave)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
