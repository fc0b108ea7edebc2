// Package config loads the dashboard configuration from YAML or JSON with
// optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dispatchkit/dispatchboard/core/metrics"
	"github.com/dispatchkit/dispatchboard/infra/telemetry"
)

type Config struct {
	API       APIConfig        `json:"api"`
	Map       MapConfig        `json:"map"`
	Telemetry telemetry.Config `json:"telemetry"`
	Metrics   metrics.Config   `json:"metrics"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("DB_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "db_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.API.SetDefaults()
	cfg.Map.SetDefaults()
	cfg.Telemetry.SetDefaults()
	if err := cfg.API.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Map.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
