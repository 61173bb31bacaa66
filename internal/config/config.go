package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port      string `json:"port" toml:"port"`
		StaticDir string `json:"static_dir" toml:"static_dir"`
		Debug     bool   `json:"debug" toml:"debug"`
	} `json:"server" toml:"server"`

	Database struct {
		Driver string `json:"driver" toml:"driver"` // "sqlite", "postgres" or "bolt"
		Path   string `json:"path" toml:"path"`     // file path, or DSN for postgres
	} `json:"database" toml:"database"`

	ML struct {
		Type       string `json:"type" toml:"type"` // "http", "google" or "static"
		ConfigPath string `json:"config_path" toml:"config_path"`
	} `json:"ml" toml:"ml"`

	ECodes struct {
		TablePath string `json:"table_path" toml:"table_path"` // empty means the built-in table
	} `json:"ecodes" toml:"ecodes"`
}

// LoadConfig loads configuration from a JSON or TOML file, chosen by extension
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	} else if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Handle missing values
	if config.Server.Port == "" {
		// Fail if port is not set
		return nil, fmt.Errorf("server port is not set in config file")
	}
	if config.Server.StaticDir == "" {
		config.Server.StaticDir = "./static"
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite"
	}
	if config.Database.Path == "" {
		switch config.Database.Driver {
		case "postgres":
			return nil, fmt.Errorf("database path must hold a DSN for postgres")
		case "bolt":
			config.Database.Path = "halalscan.bolt"
		default:
			config.Database.Path = "halalscan.db"
		}
	}
	if config.ML.Type == "" {
		config.ML.Type = "http"
	}

	return &config, nil
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("HALALSCAN_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
