package entities

import (
	"slices"
	"strings"
)

// Class is one of the playable classes
type Class string

// Playable classes
const (
	ClassFighter Class = "fighter"
	ClassRogue   Class = "rogue"
	ClassWizard  Class = "wizard"
	ClassCleric  Class = "cleric"
	ClassRanger  Class = "ranger"
)

// Classes lists every playable class in display order
var Classes = []Class{ClassFighter, ClassRogue, ClassWizard, ClassCleric, ClassRanger}

// Valid reports whether c is a playable class
func (c Class) Valid() bool {
	return slices.Contains(Classes, c)
}

// ItemType groups catalog items
type ItemType string

// Item types
const (
	ItemTypeWeapon     ItemType = "weapon"
	ItemTypeArmor      ItemType = "armor"
	ItemTypeConsumable ItemType = "consumable"
	ItemTypeGear       ItemType = "gear"
	ItemTypeTreasure   ItemType = "treasure"
)

// AbilityScores holds the six core ability scores
type AbilityScores struct {
	Strength     int `json:"str"`
	Dexterity    int `json:"dex"`
	Constitution int `json:"con"`
	Intelligence int `json:"int"`
	Wisdom       int `json:"wis"`
	Charisma     int `json:"cha"`
}

// AbilityModifier returns floor((score-10)/2)
func AbilityModifier(score int) int {
	d := score - 10
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}

// InventoryItem is one stack in a character's inventory.
// Type and Weight are cached from the catalog when the stack is created.
type InventoryItem struct {
	ItemID   string   `json:"item_id"`
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Type     ItemType `json:"type"`
	Weight   int      `json:"weight"`
}

// Character is the player's persistent record
type Character struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Name       string          `json:"name"`
	Class      Class           `json:"class"`
	Level      int             `json:"level"`
	Experience int             `json:"experience"`
	HP         int             `json:"hp"`
	MaxHP      int             `json:"max_hp"`
	Gold       int             `json:"gold"`
	Abilities  AbilityScores   `json:"abilities"`
	Inventory  []InventoryItem `json:"inventory"`
	Dead       bool            `json:"dead"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// NormalizeItemID lower-cases an identifier and folds spaces and hyphens to underscores
func NormalizeItemID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(id)
}

// Clone returns a deep copy
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	out := *c
	out.Inventory = slices.Clone(c.Inventory)
	return &out
}

// FindItem returns the index of the stack holding itemID, or -1
func (c *Character) FindItem(itemID string) int {
	id := NormalizeItemID(itemID)
	for i := range c.Inventory {
		if c.Inventory[i].ItemID == id {
			return i
		}
	}
	return -1
}

// Quantity returns how many units of itemID the character holds
func (c *Character) Quantity(itemID string) int {
	if i := c.FindItem(itemID); i >= 0 {
		return c.Inventory[i].Quantity
	}
	return 0
}

// AddItem merges item into inventory, incrementing an existing stack
func (c *Character) AddItem(item InventoryItem) {
	if item.Quantity <= 0 {
		return
	}
	item.ItemID = NormalizeItemID(item.ItemID)
	if i := c.FindItem(item.ItemID); i >= 0 {
		c.Inventory[i].Quantity += item.Quantity
		return
	}
	c.Inventory = append(c.Inventory, item)
}

// RemoveItem takes up to qty units of itemID and returns how many were removed.
// Stacks that reach zero are dropped.
func (c *Character) RemoveItem(itemID string, qty int) int {
	i := c.FindItem(itemID)
	if i < 0 || qty <= 0 {
		return 0
	}
	removed := min(qty, c.Inventory[i].Quantity)
	c.Inventory[i].Quantity -= removed
	if c.Inventory[i].Quantity <= 0 {
		c.Inventory = slices.Delete(c.Inventory, i, i+1)
	}
	return removed
}

// Normalize enforces the record invariants: hp within [0, max_hp], gold not
// negative, no empty or duplicate stacks.
func (c *Character) Normalize() {
	if c.MaxHP < 1 {
		c.MaxHP = 1
	}
	c.HP = max(0, min(c.HP, c.MaxHP))
	c.Gold = max(0, c.Gold)
	c.Experience = max(0, min(c.Experience, MaxExperience))

	merged := make([]InventoryItem, 0, len(c.Inventory))
	index := make(map[string]int, len(c.Inventory))
	for _, item := range c.Inventory {
		if item.Quantity <= 0 {
			continue
		}
		item.ItemID = NormalizeItemID(item.ItemID)
		if i, ok := index[item.ItemID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ItemID] = len(merged)
		merged = append(merged, item)
	}
	c.Inventory = merged
}

// MaxExperience caps the experience total
const MaxExperience = 1_000_000

// experienceThresholds[n] is the total xp needed to reach level n+2
var experienceThresholds = []int{300, 900, 2700, 6500, 14000, 23000, 34000, 48000, 64000}

// HitDie returns the class hit die size
func (c Class) HitDie() int {
	switch c {
	case ClassFighter, ClassRanger:
		return 10
	case ClassRogue, ClassCleric:
		return 8
	default:
		return 6
	}
}

// GainExperience adds xp and applies any level-ups, returning levels gained.
// Each level adds the average hit die roll plus CON modifier (minimum 1) to max hp
// and heals by the same amount.
func (c *Character) GainExperience(xp int) int {
	if xp <= 0 {
		return 0
	}
	c.Experience += min(xp, MaxExperience-min(c.Experience, MaxExperience))
	gained := 0
	for c.Level-1 < len(experienceThresholds) && c.Experience >= experienceThresholds[c.Level-1] {
		c.Level++
		gained++
		bonus := max(1, c.Class.HitDie()/2+1+AbilityModifier(c.Abilities.Constitution))
		c.MaxHP += bonus
		c.HP += bonus
	}
	return gained
}

// ProficiencyBonus follows the standard 2 + (level-1)/4 progression
func (c *Character) ProficiencyBonus() int {
	return 2 + (max(c.Level, 1)-1)/4
}

// AttackAbilityModifier is the ability modifier the class attacks with
func (c *Character) AttackAbilityModifier() int {
	switch c.Class {
	case ClassRogue, ClassRanger:
		return AbilityModifier(c.Abilities.Dexterity)
	case ClassWizard:
		return AbilityModifier(c.Abilities.Intelligence)
	default:
		return AbilityModifier(c.Abilities.Strength)
	}
}
