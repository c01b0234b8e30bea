// Package catalog holds the static item catalog and the enemy bestiary.
package catalog

import (
	"slices"
	"sync"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// EffectHeal restores hit points
const EffectHeal = "heal"

// UseEffect is what consuming an item does
type UseEffect struct {
	Kind     string `json:"kind"`
	Notation string `json:"notation"`
}

// Item is a catalog entry. Value is in whole gold and is at least 1.
// Weight is in tenths of a pound.
type Item struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       entities.ItemType `json:"type"`
	Value      int               `json:"value"`
	Weight     int               `json:"weight"`
	Damage     string            `json:"damage,omitempty"`
	ArmorBonus int               `json:"armor_bonus,omitempty"`
	UseEffect  *UseEffect        `json:"use_effect,omitempty"`
}

// Catalog is a concurrency-safe item lookup keyed by normalized id
type Catalog struct {
	mu      sync.RWMutex
	items   map[string]Item
	aliases map[string]string
}

// New builds a catalog from items
func New(items ...Item) *Catalog {
	c := &Catalog{
		items:   make(map[string]Item, len(items)),
		aliases: make(map[string]string),
	}
	c.Merge(items...)
	return c
}

// Default returns the built-in catalog
func Default() *Catalog {
	c := New(defaultItems...)
	for alias, id := range defaultAliases {
		c.aliases[alias] = id
	}
	return c
}

// Normalize resolves an identifier or alias to its canonical id
func (c *Catalog) Normalize(id string) string {
	n := entities.NormalizeItemID(id)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if canonical, ok := c.aliases[n]; ok {
		return canonical
	}
	return n
}

// Merge adds or replaces items
func (c *Catalog) Merge(items ...Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		item.ID = entities.NormalizeItemID(item.ID)
		item.Value = max(1, item.Value)
		c.items[item.ID] = item
	}
}

// Has reports whether id is in the catalog
func (c *Catalog) Has(id string) bool {
	_, ok := c.Lookup(id)
	return ok
}

// Lookup finds an item by id or alias
func (c *Catalog) Lookup(id string) (Item, bool) {
	n := c.Normalize(id)
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[n]
	return item, ok
}

// Get is Lookup returning NotFound for unknown ids
func (c *Catalog) Get(id string) (Item, error) {
	item, ok := c.Lookup(id)
	if !ok {
		return Item{}, errors.NotFoundf("item %q is not in the catalog", id)
	}
	return item, nil
}

// SellPrice is half the catalog value, floored, with a minimum of 1 gold
func (c *Catalog) SellPrice(id string) (int, error) {
	item, err := c.Get(id)
	if err != nil {
		return 0, err
	}
	return SellPriceFor(item.Value), nil
}

// SellPriceFor computes max(1, value/2)
func SellPriceFor(value int) int {
	return max(1, value/2)
}

// Stack builds an inventory stack with the catalog's cached type and weight
func (c *Catalog) Stack(id string, quantity int) (entities.InventoryItem, error) {
	item, err := c.Get(id)
	if err != nil {
		return entities.InventoryItem{}, err
	}
	return entities.InventoryItem{
		ItemID:   item.ID,
		Name:     item.Name,
		Quantity: quantity,
		Type:     item.Type,
		Weight:   item.Weight,
	}, nil
}

// IDs returns every catalog id in sorted order
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of items
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

var defaultAliases = map[string]string{
	"potion_of_healing":         "healing_potion",
	"potion":                    "healing_potion",
	"potion_of_greater_healing": "greater_healing_potion",
	"rope_hempen_50_feet":       "rope",
	"ration":                    "rations",
	"rations_1_day":             "rations",
	"studded_leather":           "studded_leather_armor",
	"leather":                   "leather_armor",
	"arrow":                     "arrows",
}

var defaultItems = []Item{
	{ID: "dagger", Name: "Dagger", Type: entities.ItemTypeWeapon, Value: 2, Weight: 10, Damage: "1d4"},
	{ID: "sword", Name: "Sword", Type: entities.ItemTypeWeapon, Value: 10, Weight: 30, Damage: "1d8"},
	{ID: "shortsword", Name: "Shortsword", Type: entities.ItemTypeWeapon, Value: 10, Weight: 20, Damage: "1d6"},
	{ID: "longsword", Name: "Longsword", Type: entities.ItemTypeWeapon, Value: 15, Weight: 30, Damage: "1d8"},
	{ID: "greataxe", Name: "Greataxe", Type: entities.ItemTypeWeapon, Value: 30, Weight: 70, Damage: "1d12"},
	{ID: "mace", Name: "Mace", Type: entities.ItemTypeWeapon, Value: 5, Weight: 40, Damage: "1d6"},
	{ID: "handaxe", Name: "Handaxe", Type: entities.ItemTypeWeapon, Value: 5, Weight: 20, Damage: "1d6"},
	{ID: "quarterstaff", Name: "Quarterstaff", Type: entities.ItemTypeWeapon, Value: 1, Weight: 40, Damage: "1d6"},
	{ID: "shortbow", Name: "Shortbow", Type: entities.ItemTypeWeapon, Value: 25, Weight: 20, Damage: "1d6"},
	{ID: "leather_armor", Name: "Leather Armor", Type: entities.ItemTypeArmor, Value: 10, Weight: 100, ArmorBonus: 1},
	{ID: "studded_leather_armor", Name: "Studded Leather Armor", Type: entities.ItemTypeArmor, Value: 45, Weight: 130, ArmorBonus: 2},
	{ID: "chain_shirt", Name: "Chain Shirt", Type: entities.ItemTypeArmor, Value: 50, Weight: 200, ArmorBonus: 3},
	{ID: "chain_mail", Name: "Chain Mail", Type: entities.ItemTypeArmor, Value: 75, Weight: 550, ArmorBonus: 6},
	{ID: "shield", Name: "Shield", Type: entities.ItemTypeArmor, Value: 10, Weight: 60, ArmorBonus: 2},
	{ID: "healing_potion", Name: "Potion of Healing", Type: entities.ItemTypeConsumable, Value: 50, Weight: 5,
		UseEffect: &UseEffect{Kind: EffectHeal, Notation: "2d4+2"}},
	{ID: "greater_healing_potion", Name: "Potion of Greater Healing", Type: entities.ItemTypeConsumable, Value: 150, Weight: 5,
		UseEffect: &UseEffect{Kind: EffectHeal, Notation: "4d4+4"}},
	{ID: "rations", Name: "Rations", Type: entities.ItemTypeConsumable, Value: 1, Weight: 20},
	{ID: "torch", Name: "Torch", Type: entities.ItemTypeGear, Value: 2, Weight: 10},
	{ID: "rope", Name: "Hempen Rope (50 feet)", Type: entities.ItemTypeGear, Value: 1, Weight: 100},
	{ID: "bedroll", Name: "Bedroll", Type: entities.ItemTypeGear, Value: 1, Weight: 70},
	{ID: "backpack", Name: "Backpack", Type: entities.ItemTypeGear, Value: 2, Weight: 50},
	{ID: "arrows", Name: "Arrows", Type: entities.ItemTypeGear, Value: 1, Weight: 1},
	{ID: "thieves_tools", Name: "Thieves' Tools", Type: entities.ItemTypeGear, Value: 25, Weight: 10},
	{ID: "spellbook", Name: "Spellbook", Type: entities.ItemTypeGear, Value: 50, Weight: 30},
	{ID: "holy_symbol", Name: "Holy Symbol", Type: entities.ItemTypeGear, Value: 5, Weight: 10},
	{ID: "wolf_pelt", Name: "Wolf Pelt", Type: entities.ItemTypeTreasure, Value: 2, Weight: 40},
	{ID: "silver_ring", Name: "Silver Ring", Type: entities.ItemTypeTreasure, Value: 25, Weight: 1},
	{ID: "gemstone", Name: "Gemstone", Type: entities.ItemTypeTreasure, Value: 50, Weight: 1},
	{ID: "bone_charm", Name: "Bone Charm", Type: entities.ItemTypeTreasure, Value: 3, Weight: 1},
	{ID: "ogre_tooth", Name: "Ogre Tooth", Type: entities.ItemTypeTreasure, Value: 5, Weight: 5},
}
