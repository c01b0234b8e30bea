package catalog

//go:generate mockgen -destination=mock/mock_equipment_source.go -package=catalogmock github.com/KirkDiggler/rpg-narrator/internal/catalog EquipmentSource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fadedpez/dnd5e-api/clients/dnd5e"
	srdentities "github.com/fadedpez/dnd5e-api/entities"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// EquipmentSource fetches SRD equipment by API key
type EquipmentSource interface {
	GetEquipment(key string) (dnd5e.EquipmentInterface, error)
}

// SRDConfig configures the D&D 5e SRD client
type SRDConfig struct {
	// BaseURL defaults to https://www.dnd5eapi.co/api/2014/
	BaseURL string
	// HTTPTimeout defaults to 30 seconds
	HTTPTimeout time.Duration
	// CacheTTL defaults to 24 hours
	CacheTTL time.Duration
}

// Validate sets defaults
func (cfg *SRDConfig) Validate() error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.dnd5eapi.co/api/2014/"
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return nil
}

// NewSRDSource creates a cached dnd5e-api client
func NewSRDSource(cfg *SRDConfig) (EquipmentSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseClient, err := dnd5e.NewDND5eAPI(&dnd5e.DND5eAPIConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create D&D 5e API client: %w", err)
	}

	return dnd5e.NewCachedClient(baseClient, cfg.CacheTTL), nil
}

// Hydrate fetches keys from source and adds any the catalog does not already
// carry. Built-in entries win. Fetch failures are logged and skipped.
func (c *Catalog) Hydrate(ctx context.Context, source EquipmentSource, keys []string) (int, error) {
	added := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		if c.Has(key) {
			continue
		}

		apiKey := strings.ReplaceAll(entities.NormalizeItemID(key), "_", "-")
		equipment, err := source.GetEquipment(apiKey)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch SRD equipment",
				"key", apiKey,
				"error", err.Error())
			continue
		}

		item, ok := convertEquipment(equipment)
		if !ok {
			continue
		}
		c.Merge(item)
		added++
	}

	slog.InfoContext(ctx, "hydrated item catalog from SRD",
		"requested", len(keys),
		"added", added,
		"total", c.Len())

	return added, nil
}

func convertEquipment(equipment dnd5e.EquipmentInterface) (Item, bool) {
	if equipment == nil {
		return Item{}, false
	}

	switch eq := equipment.(type) {
	case *srdentities.Weapon:
		if eq == nil {
			return Item{}, false
		}
		item := Item{
			ID:     eq.Key,
			Name:   eq.Name,
			Type:   entities.ItemTypeWeapon,
			Value:  costToGold(eq.Cost),
			Weight: tenths(float64(eq.Weight)),
		}
		if eq.Damage != nil {
			item.Damage = eq.Damage.DamageDice
		}
		return item, true

	case *srdentities.Armor:
		if eq == nil {
			return Item{}, false
		}
		item := Item{
			ID:     eq.Key,
			Name:   eq.Name,
			Type:   entities.ItemTypeArmor,
			Value:  costToGold(eq.Cost),
			Weight: tenths(float64(eq.Weight)),
		}
		if eq.ArmorClass != nil {
			// shields list their bonus directly, body armor a base AC
			if eq.ArmorClass.Base >= 10 {
				item.ArmorBonus = eq.ArmorClass.Base - 10
			} else {
				item.ArmorBonus = eq.ArmorClass.Base
			}
		}
		return item, true

	case *srdentities.Equipment:
		if eq == nil {
			return Item{}, false
		}
		return Item{
			ID:     eq.Key,
			Name:   eq.Name,
			Type:   entities.ItemTypeGear,
			Value:  costToGold(eq.Cost),
			Weight: tenths(float64(eq.Weight)),
		}, true
	}

	return Item{}, false
}

// costToGold converts an SRD cost to whole gold, never below 1
func costToGold(cost *srdentities.Cost) int {
	if cost == nil {
		return 1
	}
	q := cost.Quantity
	var gold int
	switch strings.ToLower(cost.Unit) {
	case "pp":
		gold = q * 10
	case "ep":
		gold = q / 2
	case "sp":
		gold = q / 10
	case "cp":
		gold = q / 100
	default:
		gold = q
	}
	return max(1, gold)
}

func tenths(pounds float64) int {
	return int(pounds*10 + 0.5)
}
