// Package loot rolls weighted drop tables for defeated enemies.
//
// Every enemy rolls its own table and every entry in the table rolls its own
// percentile check; results are aggregated into one PendingLoot. All rolls go
// through the injected dice.Roller, so a seeded roller reproduces the same loot.
package loot

import (
	"github.com/KirkDiggler/rpg-narrator/internal/engine/dice"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// FallbackTable is used for enemies whose table id is unknown
const FallbackTable = "generic"

// Entry is one independent drop. Chance is a percentage in [0,100].
type Entry struct {
	ItemID string
	Chance int
	MinQty int
	MaxQty int
}

// Table is the drop table for one kind of enemy
type Table struct {
	ID         string
	GoldChance int
	GoldMin    int
	GoldMax    int
	Entries    []Entry
}

// Engine rolls tables
type Engine struct {
	tables map[string]Table
	roller dice.Roller
}

// NewEngine builds an engine. A nil roller uses dice.DefaultRoller.
func NewEngine(roller dice.Roller, tables ...Table) *Engine {
	if roller == nil {
		roller = dice.DefaultRoller
	}
	if len(tables) == 0 {
		tables = DefaultTables
	}
	e := &Engine{tables: make(map[string]Table, len(tables)), roller: roller}
	for _, t := range tables {
		e.tables[t.ID] = t
	}
	return e
}

// Table returns the table for id, falling back to the generic table
func (e *Engine) Table(id string) (Table, bool) {
	if t, ok := e.tables[id]; ok {
		return t, true
	}
	t, ok := e.tables[FallbackTable]
	return t, ok
}

// RollLoot rolls every defeated enemy in roster and aggregates the drops
func (e *Engine) RollLoot(roster []entities.Enemy) (*entities.PendingLoot, error) {
	loot := &entities.PendingLoot{}
	index := make(map[string]int)

	for _, enemy := range roster {
		if !enemy.Defeated() {
			continue
		}
		table, ok := e.Table(enemy.LootTable)
		if !ok {
			continue
		}

		gold, items, err := e.rollTable(table)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to roll loot for %s", enemy.ID)
		}

		loot.Gold += gold
		for _, item := range items {
			if i, seen := index[item.ItemID]; seen {
				loot.Items[i].Quantity += item.Quantity
				continue
			}
			index[item.ItemID] = len(loot.Items)
			loot.Items = append(loot.Items, item)
		}
	}

	return loot, nil
}

func (e *Engine) rollTable(t Table) (int, []entities.LootItem, error) {
	gold := 0
	if t.GoldMax > 0 {
		hit, err := e.percent(t.GoldChance)
		if err != nil {
			return 0, nil, err
		}
		if hit {
			gold, err = e.between(t.GoldMin, t.GoldMax)
			if err != nil {
				return 0, nil, err
			}
		}
	}

	var items []entities.LootItem
	for _, entry := range t.Entries {
		hit, err := e.percent(entry.Chance)
		if err != nil {
			return 0, nil, err
		}
		if !hit {
			continue
		}
		qty, err := e.between(max(1, entry.MinQty), max(1, entry.MinQty, entry.MaxQty))
		if err != nil {
			return 0, nil, err
		}
		items = append(items, entities.LootItem{ItemID: entry.ItemID, Quantity: qty})
	}

	return gold, items, nil
}

// percent rolls a d100 and succeeds on a result at or below chance
func (e *Engine) percent(chance int) (bool, error) {
	if chance <= 0 {
		return false, nil
	}
	if chance >= 100 {
		return true, nil
	}
	v, err := e.roller.Roll(100)
	if err != nil {
		return false, err
	}
	return v <= chance, nil
}

func (e *Engine) between(lo, hi int) (int, error) {
	if hi <= lo {
		return lo, nil
	}
	v, err := e.roller.Roll(hi - lo + 1)
	if err != nil {
		return 0, err
	}
	return lo + v - 1, nil
}

// DefaultTables are the built-in drop tables keyed by bestiary loot table id
var DefaultTables = []Table{
	{ID: "goblin", GoldChance: 80, GoldMin: 1, GoldMax: 6, Entries: []Entry{
		{ItemID: "dagger", Chance: 25, MinQty: 1, MaxQty: 1},
		{ItemID: "shortbow", Chance: 10, MinQty: 1, MaxQty: 1},
		{ItemID: "bone_charm", Chance: 30, MinQty: 1, MaxQty: 2},
	}},
	{ID: "beast", Entries: []Entry{
		{ItemID: "wolf_pelt", Chance: 60, MinQty: 1, MaxQty: 1},
	}},
	{ID: "vermin", GoldChance: 10, GoldMin: 1, GoldMax: 2},
	{ID: "undead", GoldChance: 40, GoldMin: 1, GoldMax: 10, Entries: []Entry{
		{ItemID: "bone_charm", Chance: 40, MinQty: 1, MaxQty: 1},
		{ItemID: "silver_ring", Chance: 5, MinQty: 1, MaxQty: 1},
	}},
	{ID: "bandit", GoldChance: 90, GoldMin: 2, GoldMax: 12, Entries: []Entry{
		{ItemID: "shortsword", Chance: 20, MinQty: 1, MaxQty: 1},
		{ItemID: "healing_potion", Chance: 10, MinQty: 1, MaxQty: 1},
		{ItemID: "rations", Chance: 40, MinQty: 1, MaxQty: 3},
	}},
	{ID: "orc", GoldChance: 70, GoldMin: 3, GoldMax: 15, Entries: []Entry{
		{ItemID: "greataxe", Chance: 15, MinQty: 1, MaxQty: 1},
		{ItemID: "healing_potion", Chance: 10, MinQty: 1, MaxQty: 1},
	}},
	{ID: "ogre", GoldChance: 100, GoldMin: 10, GoldMax: 40, Entries: []Entry{
		{ItemID: "ogre_tooth", Chance: 75, MinQty: 1, MaxQty: 2},
		{ItemID: "gemstone", Chance: 20, MinQty: 1, MaxQty: 1},
		{ItemID: "greater_healing_potion", Chance: 10, MinQty: 1, MaxQty: 1},
	}},
	{ID: FallbackTable, GoldChance: 50, GoldMin: 1, GoldMax: 8, Entries: []Entry{
		{ItemID: "torch", Chance: 15, MinQty: 1, MaxQty: 2},
		{ItemID: "healing_potion", Chance: 5, MinQty: 1, MaxQty: 1},
	}},
}
