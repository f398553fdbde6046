package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources  []string `yaml:"sources"`
	Reddit   Reddit   `yaml:"reddit"`
	Analysis Analysis `yaml:"analysis"`
	Email    Email    `yaml:"email"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Reddit struct {
	ClientIDEnv     string `yaml:"client_id_env"`
	ClientSecretEnv string `yaml:"client_secret_env"`
	UserAgent       string `yaml:"user_agent"`
	MaxPosts        int    `yaml:"max_posts"`
	LookbackHours   int    `yaml:"lookback_hours"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

type Analysis struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
	MaxPosts    int    `yaml:"max_posts"`
}

type Email struct {
	APIKeyEnv   string   `yaml:"api_key_env"`
	SenderName  string   `yaml:"sender_name"`
	SenderEmail string   `yaml:"sender_email"`
	Recipients  []string `yaml:"recipients"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for trendwatcher.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "trendwatcher")
}

// DataDir returns the XDG data directory for trendwatcher.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "trendwatcher")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/trendwatcher/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'trendwatcher init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: []string{"lonely", "depression", "socialskills"},
		Reddit: Reddit{
			ClientIDEnv:     "REDDIT_CLIENT_ID",
			ClientSecretEnv: "REDDIT_CLIENT_SECRET",
			UserAgent:       "web:TrendWatcher:v1.0 (by /u/sdglab)",
			MaxPosts:        100,
			LookbackHours:   48,
			TimeoutSeconds:  30,
		},
		Analysis: Analysis{
			Provider:    "openai",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   4000,
			MaxPosts:    200,
		},
		Email: Email{
			APIKeyEnv:   "BREVO_API_KEY",
			SenderName:  "TrendWatcher",
			SenderEmail: "trendwatcher@sdglab.dev",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Reddit.LookbackHours <= 0 {
		return nil, fmt.Errorf("reddit.lookback_hours must be positive, got %d", cfg.Reddit.LookbackHours)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
