package scraper

import (
	"embed"
	"log/slog"
	"os"
)

//go:embed selectors.yaml
var embeddedSelectors embed.FS

// LoadConfig tries to load selectors in the following order:
// 1. External file defined by SELECTORS_CONFIG_PATH, when set
// 2. Embedded selectors.yaml
// 3. Hardcoded defaults
func LoadConfig(log *slog.Logger) SelectorConfig {
	if configPath := os.Getenv("SELECTORS_CONFIG_PATH"); configPath != "" {
		if fileSel, err := LoadSelectors(configPath); err == nil {
			log.Info("Loaded selectors from external file", "path", configPath)
			return fileSel
		} else {
			log.Warn("Failed to load external selectors, trying embedded config", "path", configPath, "error", err)
		}
	}

	data, err := embeddedSelectors.ReadFile("selectors.yaml")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			log.Info("Loaded selectors from embedded config")
			return sel
		}
		log.Warn("Embedded selectors failed to parse, using defaults", "error", parseErr)
	}

	log.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}
