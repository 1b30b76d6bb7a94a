package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Type == "" {
			p.Type = "openai"
		}
		if p.Name == "" {
			p.Name = p.Type
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = 2000
		}
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
	}

	return &cfg, nil
}

func validateProvider(p *ProviderConfig) error {
	switch p.Type {
	case "openai", "anthropic":
		if p.APIKey == "" {
			return fmt.Errorf("api_key is required for type %s", p.Type)
		}
		if p.Model == "" {
			return fmt.Errorf("model is required for type %s", p.Type)
		}
	case "local":
		// Endpoint and model fall back to the adapter defaults.
	default:
		return fmt.Errorf("unknown provider type %q", p.Type)
	}
	return nil
}
