package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration.
type Config struct {
	General struct {
		PatternsDir string `koanf:"patterns_dir"`
		OutputDir   string `koanf:"output_dir"`
	} `koanf:"general"`

	Model struct {
		Enabled     bool          `koanf:"enabled"`
		ServerURL   string        `koanf:"server_url"`
		Name        string        `koanf:"name"`
		Temperature float64       `koanf:"temperature"`
		Timeout     time.Duration `koanf:"timeout"`
		RatePerSec  float64       `koanf:"rate_per_sec"`
	} `koanf:"model"`

	Engine struct {
		MaxRepairAttempts          int     `koanf:"max_repair_attempts"`
		DefaultDomain              string  `koanf:"default_domain"`
		ExtractConfidenceThreshold float64 `koanf:"extract_confidence_threshold"`
	} `koanf:"engine"`

	API struct {
		Listen     string `koanf:"listen"`
		APIKeyHash string `koanf:"api_key_hash"`
	} `koanf:"api"`
}

// LoadConfig loads the configuration: built-in defaults, then a TOML file
// (explicit path or the default locations), then LYSITHEA_ environment
// overrides.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"general.patterns_dir":                "./patterns",
		"general.output_dir":                  "./output",
		"model.enabled":                       true,
		"model.server_url":                    "http://localhost:11434",
		"model.name":                          "llama3.1:8b",
		"model.temperature":                   0.2,
		"model.timeout":                       "90s",
		"model.rate_per_sec":                  1.0,
		"engine.max_repair_attempts":          2,
		"engine.default_domain":               "http-route",
		"engine.extract_confidence_threshold": 0.6,
		"api.listen":                          ":8470",
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./lysithea.toml", "$HOME/.lysithea.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider("LYSITHEA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LYSITHEA_")), "_", ".", 1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig writes a commented sample configuration file.
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Lysithea Configuration

[general]
patterns_dir = "./patterns"
output_dir = "./output"

[model]
enabled = true
server_url = "http://localhost:11434"
name = "llama3.1:8b"
temperature = 0.2
timeout = "90s"
rate_per_sec = 1.0

[engine]
max_repair_attempts = 2
default_domain = "http-route"
extract_confidence_threshold = 0.6

[api]
listen = ":8470"
# bcrypt hash of the API key automation callers must present
# api_key_hash = "$2a$10$..."
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate checks the configuration for values the engine cannot run
// without.
func Validate(config *Config) error {
	if config.General.PatternsDir == "" {
		return fmt.Errorf("patterns directory is required")
	}
	if config.Engine.MaxRepairAttempts < 0 {
		return fmt.Errorf("max_repair_attempts must not be negative")
	}
	if t := config.Engine.ExtractConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("extract_confidence_threshold must be between 0 and 1")
	}
	if config.Model.Enabled {
		if config.Model.ServerURL == "" {
			return fmt.Errorf("model server_url is required when the model is enabled")
		}
		if config.Model.Name == "" {
			return fmt.Errorf("model name is required when the model is enabled")
		}
	}
	return nil
}
