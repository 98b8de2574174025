package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/knowctx/internal/service"
)

// LoadRetrievalFile overlays the YAML file at path onto the default retrieval
// config. Keys absent from the file keep their defaults. An empty path returns
// the defaults.
func LoadRetrievalFile(path string) (service.RetrievalConfig, error) {
	cfg := service.DefaultRetrievalConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read retrieval config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse retrieval config %s: %w", path, err)
	}
	if err := validateRetrieval(cfg); err != nil {
		return cfg, fmt.Errorf("invalid retrieval config %s: %w", path, err)
	}
	return cfg, nil
}

func validateRetrieval(cfg service.RetrievalConfig) error {
	switch {
	case cfg.TopN <= 0:
		return fmt.Errorf("top_n must be positive")
	case cfg.TokenBudget <= 0:
		return fmt.Errorf("token_budget must be positive")
	case cfg.MinFitScore < 0 || cfg.MinFitScore > 100:
		return fmt.Errorf("min_fit_score must be within [0,100]")
	case cfg.ExcerptCap < 0:
		return fmt.Errorf("excerpt_cap must not be negative")
	}
	return nil
}
