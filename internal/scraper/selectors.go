package scraper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SelectorConfig holds the page markers for every known source, keyed by source tag.
type SelectorConfig map[string]SourceSelectors

// SourceSelectors describes where a source keeps each deal field.
type SourceSelectors struct {
	Homepage       string `yaml:"homepage"`
	SearchPath     string `yaml:"search_path"`
	DefaultPerPage int    `yaml:"default_per_page"`
	DefaultSort    string `yaml:"default_sort"`

	Listing ListingSelectors `yaml:"listing"`
	Detail  DetailSelectors  `yaml:"detail"`
}

type ListingSelectors struct {
	PostLinkClass string `yaml:"post_link_class"` // exact class attribute of organic post anchors
}

type DetailSelectors struct {
	PriceClass    string `yaml:"price_class"`
	ScoreClass    string `yaml:"score_class"`
	SeeDealText   string `yaml:"see_deal_text"`
	ImageProperty string `yaml:"image_property"`
}

// LoadSelectors loads the selector configuration from the specified YAML file.
func LoadSelectors(path string) (SelectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector config file: %w", err)
	}

	return LoadSelectorsFromBytes(data)
}

// LoadSelectorsFromBytes parses selector configuration from raw YAML bytes.
func LoadSelectorsFromBytes(data []byte) (SelectorConfig, error) {
	var config SelectorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse selector config YAML: %w", err)
	}
	if len(config) == 0 {
		return nil, fmt.Errorf("selector config defines no sources")
	}
	for tag, sel := range config {
		if sel.Homepage == "" || sel.Listing.PostLinkClass == "" {
			return nil, fmt.Errorf("selector config for %q is missing homepage or post_link_class", tag)
		}
	}

	return config, nil
}

// DefaultSelectors returns the fallback configuration if no YAML file is loaded.
// The embedded selectors.yaml should be preferred.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		SourceSlickdeals: {
			Homepage:       "https://slickdeals.net",
			SearchPath:     "/newsearch.php",
			DefaultPerPage: 10,
			DefaultSort:    "newest",
			Listing: ListingSelectors{
				PostLinkClass: "bp-p-dealLink bp-c-link",
			},
			Detail: DetailSelectors{
				PriceClass:    "dealPrice",
				ScoreClass:    "dealScoreBox",
				SeeDealText:   "See Deal",
				ImageProperty: "og:image",
			},
		},
	}
}
