package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// BundleDefault is one airline's seed bundle template, loaded from the
// static YAML file named by BUNDLE_DEFAULTS_PATH (if set). This is the
// "ship a sane default without requiring an admin to author one first"
// bootstrap spec §9 leaves to configuration; it seeds the same
// bundle_templates table admin writes target, it just runs once at
// startup rather than through an authoring UI.
type BundleDefault struct {
	AirlineID string `yaml:"airline_id"`
	Name      string `yaml:"name"`
	Priority  int    `yaml:"priority"`
	Slots     []struct {
		ProductType string `yaml:"product_type"`
		Required    bool   `yaml:"required"`
	} `yaml:"slots"`
	DiscountPercentage float64 `yaml:"discount_percentage"`
}

// LoadBundleDefaults reads the YAML seed file at path. A missing path is
// not an error — it just means no static seeding happens.
func LoadBundleDefaults(path string) ([]BundleDefault, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var defaults []BundleDefault
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}
