package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"communityhub/internal/pkg/validator"

	"github.com/spf13/viper"
)

// Resource kinds. Food outlets follow the order flow, everything else the
// reservation flow.
const (
	KindFood     = "food"
	KindRoom     = "room"
	KindFacility = "facility"
	KindParking  = "parking"
	KindBus      = "bus"
	KindEvent    = "event"
)

// Catalog is the static deployment configuration: loyalty tiers and the
// bookable resources with their capacities.
type Catalog struct {
	Loyalty   LoyaltyConfig    `mapstructure:"loyalty"`
	Resources []ResourceConfig `mapstructure:"resources" validate:"dive"`
}

type LoyaltyConfig struct {
	SpendPerPoint int64        `mapstructure:"spend_per_point" validate:"gt=0"`
	Tiers         []TierConfig `mapstructure:"tiers" validate:"min=1,dive"`
}

// TierConfig mirrors loyalty.Tier; a nil MaxSpend marks the open-ended top tier.
type TierConfig struct {
	Name       string `mapstructure:"name" validate:"required"`
	MinSpend   int64  `mapstructure:"min_spend" validate:"gte=0"`
	MaxSpend   *int64 `mapstructure:"max_spend"`
	PointValue int64  `mapstructure:"point_value" validate:"gt=0"`
}

type ResourceConfig struct {
	ID       string `mapstructure:"id" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	Kind     string `mapstructure:"kind" validate:"oneof=food room facility parking bus event"`
	Capacity int    `mapstructure:"capacity" validate:"gt=0"`
}

func int64Ptr(v int64) *int64 { return &v }

func DefaultCatalog() Catalog {
	return Catalog{
		Loyalty: LoyaltyConfig{
			SpendPerPoint: 20000,
			Tiers: []TierConfig{
				{Name: "bronze", MinSpend: 0, MaxSpend: int64Ptr(2_000_000), PointValue: 1000},
				{Name: "silver", MinSpend: 2_000_000, MaxSpend: int64Ptr(5_000_000), PointValue: 1200},
				{Name: "gold", MinSpend: 5_000_000, MaxSpend: int64Ptr(10_000_000), PointValue: 1400},
				{Name: "platinum", MinSpend: 10_000_000, MaxSpend: nil, PointValue: 1500},
			},
		},
		Resources: []ResourceConfig{
			{ID: "canteen", Name: "Community canteen", Kind: KindFood, Capacity: 30},
			{ID: "meeting-room-a", Name: "Meeting room A", Kind: KindRoom, Capacity: 1},
			{ID: "tennis-court", Name: "Tennis court", Kind: KindFacility, Capacity: 2},
			{ID: "parking-b1", Name: "Basement parking B1", Kind: KindParking, Capacity: 120},
			{ID: "shuttle-0730", Name: "Shuttle bus 07:30", Kind: KindBus, Capacity: 29},
			{ID: "summer-fair", Name: "Summer fair", Kind: KindEvent, Capacity: 200},
		},
	}
}

// LoadCatalog reads the catalog from path, or from community.yml in the
// usual locations when path is empty. A missing default file falls back to
// DefaultCatalog; a missing explicit path is an error. Sections absent from
// the file keep their defaults.
func LoadCatalog(path string) (Catalog, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("community")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/communityhub")
		v.AddConfigPath(".")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
	}

	defaults := DefaultCatalog()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		return defaults, validateCatalog(defaults)
	}

	var cfg Catalog
	if err := v.Unmarshal(&cfg); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if cfg.Loyalty.SpendPerPoint == 0 {
		cfg.Loyalty.SpendPerPoint = defaults.Loyalty.SpendPerPoint
	}
	if len(cfg.Loyalty.Tiers) == 0 {
		cfg.Loyalty.Tiers = defaults.Loyalty.Tiers
	}
	if cfg.Resources == nil {
		cfg.Resources = defaults.Resources
	}
	if err := validateCatalog(cfg); err != nil {
		return Catalog{}, err
	}
	return cfg, nil
}

func validateCatalog(cfg Catalog) error {
	if errs := validator.Validate(cfg); len(errs) > 0 {
		keys := make([]string, 0, len(errs))
		for k, tag := range errs {
			keys = append(keys, k+"="+tag)
		}
		sort.Strings(keys)
		return fmt.Errorf("invalid catalog: %s", strings.Join(keys, ", "))
	}

	seen := make(map[string]bool, len(cfg.Resources))
	for _, r := range cfg.Resources {
		if seen[r.ID] {
			return fmt.Errorf("invalid catalog: duplicate resource id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
