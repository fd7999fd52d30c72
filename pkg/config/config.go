package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app" toml:"app"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers" toml:"providers"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory" toml:"memory"`
	Engine    EngineConfig              `json:"engine" yaml:"engine" toml:"engine"`
	Policy    PolicyConfig              `json:"policy" yaml:"policy" toml:"policy"`
	Logging   LoggingConfig             `json:"logging" yaml:"logging" toml:"logging"`
	Host      HostConfig                `json:"host" yaml:"host" toml:"host"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name" toml:"name"`
	Workspace string `json:"workspace" yaml:"workspace" toml:"workspace"`
	// StateDir holds the checkpoint; relative paths are inside the workspace.
	StateDir string `json:"state_dir" yaml:"state_dir" toml:"state_dir"`
}

type ProviderConfig struct {
	APIKey      string  `json:"api_key" yaml:"api_key" toml:"api_key"`
	Model       string  `json:"model" yaml:"model" toml:"model"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty" toml:"base_url"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" toml:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" toml:"max_tokens"`
	Enabled     bool    `json:"enabled" yaml:"enabled" toml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type" toml:"type"`
	Path string `json:"path" yaml:"path" toml:"path"`
}

type EngineConfig struct {
	ChainEnabled      bool     `json:"chain_enabled" yaml:"chain_enabled" toml:"chain_enabled"`
	ChainTools        []string `json:"chain_tools" yaml:"chain_tools" toml:"chain_tools"`
	HistoryLimit      int      `json:"history_limit" yaml:"history_limit" toml:"history_limit"`
	RequestsPerMinute int      `json:"requests_per_minute" yaml:"requests_per_minute" toml:"requests_per_minute"`
	PromptsDir        string   `json:"prompts_dir" yaml:"prompts_dir" toml:"prompts_dir"`
}

type PolicyConfig struct {
	DenyTools    []string `json:"deny_tools" yaml:"deny_tools" toml:"deny_tools"`
	DenyPatterns []string `json:"deny_patterns" yaml:"deny_patterns" toml:"deny_patterns"`
}

type LoggingConfig struct {
	Debug bool   `json:"debug" yaml:"debug" toml:"debug"`
	Dir   string `json:"dir" yaml:"dir" toml:"dir"`
}

type HostConfig struct {
	ScriptsDir  string `json:"scripts_dir" yaml:"scripts_dir" toml:"scripts_dir"`
	AssetsDir   string `json:"assets_dir" yaml:"assets_dir" toml:"assets_dir"`
	DocsDir     string `json:"docs_dir" yaml:"docs_dir" toml:"docs_dir"`
	ScriptExt   string `json:"script_ext" yaml:"script_ext" toml:"script_ext"`
	ReadyMarker string `json:"ready_marker" yaml:"ready_marker" toml:"ready_marker"`
	ReloadFlag  string `json:"reload_flag" yaml:"reload_flag" toml:"reload_flag"`
}

// Default returns a configuration with every default applied and no provider.
func Default() *Config {
	cfg := &Config{Engine: EngineConfig{ChainEnabled: true}}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a JSON, YAML or TOML file depending on its extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := Config{Engine: EngineConfig{ChainEnabled: true}}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "reforge"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "."
	}
	if c.App.StateDir == "" {
		c.App.StateDir = ".reforge"
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = filepath.Join(c.App.StateDir, "history.db")
	}
	if len(c.Engine.ChainTools) == 0 {
		c.Engine.ChainTools = []string{"update_documentation", "read_script"}
	}
	if c.Engine.HistoryLimit == 0 {
		c.Engine.HistoryLimit = 6
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = filepath.Join(c.App.StateDir, "logs")
	}
	if c.Host.ScriptsDir == "" {
		c.Host.ScriptsDir = "Scripts"
	}
	if c.Host.AssetsDir == "" {
		c.Host.AssetsDir = "Assets"
	}
	if c.Host.DocsDir == "" {
		c.Host.DocsDir = "Docs"
	}
	if c.Host.ScriptExt == "" {
		c.Host.ScriptExt = ".cs"
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
}

// applyEnv lets REFORGE_<PROVIDER>_API_KEY override keys kept out of the file.
func (c *Config) applyEnv() {
	for name, p := range c.Providers {
		key := "REFORGE_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_API_KEY"
		if v := os.Getenv(key); v != "" {
			p.APIKey = v
			c.Providers[name] = p
		}
	}
}

func (c *Config) Validate() error {
	if c.Engine.HistoryLimit < 0 {
		return fmt.Errorf("engine.history_limit must not be negative")
	}
	if c.Engine.RequestsPerMinute < 0 {
		return fmt.Errorf("engine.requests_per_minute must not be negative")
	}
	if !strings.HasPrefix(c.Host.ScriptExt, ".") {
		return fmt.Errorf("host.script_ext must start with a dot, got %q", c.Host.ScriptExt)
	}
	return nil
}

// StatePath resolves the state directory against the workspace.
func (c *Config) StatePath() string {
	return c.resolve(c.App.StateDir)
}

func (c *Config) LogPath() string {
	return c.resolve(c.Logging.Dir)
}

func (c *Config) HistoryPath() string {
	return c.resolve(c.Memory.Path)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.Workspace, p)
}

// GetDefaultProvider returns the first enabled provider by name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}
