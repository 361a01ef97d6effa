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
	Site    Site    `yaml:"site"`
	Content Content `yaml:"content"`
	Sources Sources `yaml:"sources"`
	Import  Import  `yaml:"import"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Site struct {
	Title    string `yaml:"title"`
	Language string `yaml:"language"`
}

type Content struct {
	DataFile         string `yaml:"data_file"`
	StaleAfterMin    int    `yaml:"stale_after_minutes"`
	PageSize         int    `yaml:"page_size"`
	RecentLimit      int    `yaml:"recent_limit"`
	PopularThreshold int    `yaml:"popular_threshold"`
}

type Sources struct {
	Feeds []Feed `yaml:"feeds"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type Import struct {
	FetchContent    bool `yaml:"fetch_content"`
	FetchTimeoutSec int  `yaml:"fetch_timeout_seconds"`
	DaysBack        int  `yaml:"days_back"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for kakehashi.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "kakehashi")
}

// DataDir returns the XDG data directory for kakehashi.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "kakehashi")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/kakehashi/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'kakehashi init' to create a default config",
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
		Site: Site{
			Title:    "中日商务之桥",
			Language: "zh",
		},
		Content: Content{
			StaleAfterMin:    15,
			PageSize:         9,
			RecentLimit:      20,
			PopularThreshold: 80,
		},
		Import: Import{
			FetchContent:    true,
			FetchTimeoutSec: 15,
			DaysBack:        30,
		},
		Server:  Server{Host: "127.0.0.1", Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
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

// GetDataFile returns the effective article data file path.
func (c *Config) GetDataFile() string {
	if c.Content.DataFile != "" {
		return c.Content.DataFile
	}
	return filepath.Join(c.GetDataDir(), "articles.json")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
