package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cartrewards/service_layer/internal/app/domain/reward"
)

type milestonesFile struct {
	Currency string `yaml:"currency"`
	Tiers    []struct {
		Threshold    int64  `yaml:"threshold"`
		FreeProducts int    `yaml:"free_products"`
		Label        string `yaml:"label"`
	} `yaml:"tiers"`
	Products []struct {
		ID       string `yaml:"id"`
		Title    string `yaml:"title"`
		ImageURL string `yaml:"image_url"`
	} `yaml:"products"`
}

// LoadMilestones reads the milestone catalog from a YAML file.
func LoadMilestones(path string) (reward.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return reward.Catalog{}, fmt.Errorf("failed to read milestones config: %w", err)
	}
	return ParseMilestones(data)
}

// ParseMilestones decodes and validates a milestone catalog.
func ParseMilestones(data []byte) (reward.Catalog, error) {
	var file milestonesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return reward.Catalog{}, fmt.Errorf("failed to parse milestones config: %w", err)
	}
	if len(file.Tiers) == 0 {
		return reward.Catalog{}, fmt.Errorf("milestones config: at least one tier is required")
	}

	tiers := make([]reward.Tier, 0, len(file.Tiers))
	for _, t := range file.Tiers {
		tiers = append(tiers, reward.Tier{Threshold: t.Threshold, FreeProducts: t.FreeProducts, Label: t.Label})
	}
	table, err := reward.NewTable(tiers)
	if err != nil {
		return reward.Catalog{}, fmt.Errorf("milestones config: %w", err)
	}

	products := make([]reward.Product, 0, len(file.Products))
	for _, p := range file.Products {
		products = append(products, reward.Product{
			ID:       strings.TrimSpace(p.ID),
			Title:    strings.TrimSpace(p.Title),
			ImageURL: strings.TrimSpace(p.ImageURL),
		})
	}
	if err := reward.ValidateProducts(products); err != nil {
		return reward.Catalog{}, fmt.Errorf("milestones config: %w", err)
	}

	return reward.Catalog{
		Currency: strings.ToUpper(strings.TrimSpace(file.Currency)),
		Table:    table,
		Products: products,
	}, nil
}

// LoadMilestonesOrDefault loads path, or returns the default catalog when
// path is empty.
func LoadMilestonesOrDefault(path string) (reward.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultMilestones(), nil
	}
	return LoadMilestones(path)
}

// DefaultMilestones is the built-in catalog: the default tier ladder and an
// open product list.
func DefaultMilestones() reward.Catalog {
	return reward.Catalog{Table: reward.DefaultTable()}
}
