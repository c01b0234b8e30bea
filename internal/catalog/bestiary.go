package catalog

import (
	"strings"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// Bounds applied to narrator-declared stats for creatures the bestiary does not know
const (
	MinGenericHP = 1
	MaxGenericHP = 120
	MinGenericAC = 8
	MaxGenericAC = 22

	genericKind = "generic"
)

// Template describes how to spawn one enemy
type Template struct {
	Kind            string
	Name            string
	HPDice          string
	FixedHP         int
	AC              int
	AttackBonus     int
	Damage          string
	InitiativeBonus int
	XP              int
	LootTable       string
}

// Bestiary maps creature kinds to templates
type Bestiary struct {
	templates map[string]Template
}

// NewBestiary builds a bestiary from templates
func NewBestiary(templates ...Template) *Bestiary {
	b := &Bestiary{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		b.templates[entities.NormalizeItemID(t.Kind)] = t
	}
	return b
}

// DefaultBestiary returns the built-in creatures
func DefaultBestiary() *Bestiary {
	return NewBestiary(defaultTemplates...)
}

// Lookup finds a template by kind. Plural kinds ("goblins") resolve to the singular.
func (b *Bestiary) Lookup(kind string) (Template, bool) {
	k := entities.NormalizeItemID(kind)
	if t, ok := b.templates[k]; ok {
		return t, true
	}
	if trimmed := strings.TrimSuffix(k, "s"); trimmed != k {
		t, ok := b.templates[trimmed]
		return t, ok
	}
	return Template{}, false
}

// Resolve returns the template for a declared enemy. Unknown kinds use the
// generic template with the declared hp and ac clamped to sane bounds.
func (b *Bestiary) Resolve(declared entities.EncounterEnemy) Template {
	if t, ok := b.Lookup(declared.Kind); ok {
		if declared.Name != "" {
			t.Name = declared.Name
		}
		return t
	}

	t := b.templates[genericKind]
	t.Kind = entities.NormalizeItemID(declared.Kind)
	t.Name = declared.Name
	if t.Name == "" {
		t.Name = strings.TrimSpace(declared.Kind)
	}
	if t.Name == "" {
		t.Name = "Hostile creature"
	}
	if declared.HP > 0 {
		t.FixedHP = min(max(declared.HP, MinGenericHP), MaxGenericHP)
	}
	if declared.AC > 0 {
		t.AC = min(max(declared.AC, MinGenericAC), MaxGenericAC)
	}
	return t
}

var defaultTemplates = []Template{
	{Kind: "goblin", Name: "Goblin", HPDice: "2d6", AC: 15, AttackBonus: 4, Damage: "1d6+2", InitiativeBonus: 2, XP: 50, LootTable: "goblin"},
	{Kind: "wolf", Name: "Wolf", HPDice: "2d8+2", AC: 13, AttackBonus: 4, Damage: "2d4+2", InitiativeBonus: 2, XP: 50, LootTable: "beast"},
	{Kind: "giant_rat", Name: "Giant Rat", HPDice: "2d6", AC: 12, AttackBonus: 4, Damage: "1d4+2", InitiativeBonus: 2, XP: 25, LootTable: "vermin"},
	{Kind: "skeleton", Name: "Skeleton", HPDice: "2d8+4", AC: 13, AttackBonus: 4, Damage: "1d6+2", InitiativeBonus: 2, XP: 50, LootTable: "undead"},
	{Kind: "zombie", Name: "Zombie", HPDice: "3d8+9", AC: 8, AttackBonus: 3, Damage: "1d6+1", InitiativeBonus: -2, XP: 50, LootTable: "undead"},
	{Kind: "bandit", Name: "Bandit", HPDice: "2d8+2", AC: 12, AttackBonus: 3, Damage: "1d6+1", InitiativeBonus: 1, XP: 25, LootTable: "bandit"},
	{Kind: "orc", Name: "Orc", HPDice: "2d8+6", AC: 13, AttackBonus: 5, Damage: "1d12+3", InitiativeBonus: 1, XP: 100, LootTable: "orc"},
	{Kind: "ogre", Name: "Ogre", HPDice: "7d10+21", AC: 11, AttackBonus: 6, Damage: "2d8+4", InitiativeBonus: -1, XP: 450, LootTable: "ogre"},
	{Kind: genericKind, Name: "Hostile creature", HPDice: "2d8", AC: 12, AttackBonus: 3, Damage: "1d6+1", XP: 25, LootTable: "generic"},
}
