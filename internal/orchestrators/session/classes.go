package session

import "github.com/KirkDiggler/rpg-narrator/internal/entities"

type kitItem struct {
	id  string
	qty int
}

type classTemplate struct {
	abilities entities.AbilityScores
	kit       []kitItem
}

// Standard array assignments and starting equipment per class
var classTemplates = map[entities.Class]classTemplate{
	entities.ClassFighter: {
		abilities: entities.AbilityScores{Strength: 15, Dexterity: 13, Constitution: 14, Intelligence: 8, Wisdom: 12, Charisma: 10},
		kit: []kitItem{
			{"longsword", 1}, {"shield", 1}, {"leather_armor", 1},
			{"healing_potion", 1}, {"torch", 2}, {"rations", 3},
		},
	},
	entities.ClassRogue: {
		abilities: entities.AbilityScores{Strength: 8, Dexterity: 15, Constitution: 13, Intelligence: 12, Wisdom: 10, Charisma: 14},
		kit: []kitItem{
			{"shortsword", 1}, {"dagger", 2}, {"leather_armor", 1},
			{"thieves_tools", 1}, {"torch", 1}, {"rations", 2},
		},
	},
	entities.ClassWizard: {
		abilities: entities.AbilityScores{Strength: 8, Dexterity: 14, Constitution: 13, Intelligence: 15, Wisdom: 12, Charisma: 10},
		kit: []kitItem{
			{"quarterstaff", 1}, {"dagger", 1}, {"spellbook", 1},
			{"healing_potion", 1}, {"torch", 1}, {"rations", 2},
		},
	},
	entities.ClassCleric: {
		abilities: entities.AbilityScores{Strength: 13, Dexterity: 10, Constitution: 14, Intelligence: 8, Wisdom: 15, Charisma: 12},
		kit: []kitItem{
			{"mace", 1}, {"shield", 1}, {"chain_shirt", 1},
			{"holy_symbol", 1}, {"healing_potion", 1}, {"rations", 2},
		},
	},
	entities.ClassRanger: {
		abilities: entities.AbilityScores{Strength: 12, Dexterity: 15, Constitution: 13, Intelligence: 10, Wisdom: 14, Charisma: 8},
		kit: []kitItem{
			{"shortbow", 1}, {"arrows", 20}, {"shortsword", 1},
			{"leather_armor", 1}, {"bedroll", 1}, {"rations", 3},
		},
	},
}

// startingHP is a full hit die plus the CON modifier
func startingHP(class entities.Class, con int) int {
	return max(1, class.HitDie()+entities.AbilityModifier(con))
}
