package prompts

import (
	"fmt"
	"slices"
	"strings"

	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/clients/narrator"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/intent"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// ContextInput is everything the narrator is told about the current turn
type ContextInput struct {
	Character *entities.Character
	Session   *entities.Session
	Category  intent.Category
	Catalog   *catalog.Catalog

	// Combat is the state after the server resolved this turn's round
	Combat *entities.CombatState
	// CombatLog is what happened this turn
	CombatLog []entities.CombatLogEntry
	// LootClaimed is what a search just picked up
	LootClaimed *entities.PendingLoot
	// Notes are server facts the narrator must respect, such as a rejected action
	Notes []string
}

// Context renders the per-turn context block
func Context(in *ContextInput) string {
	var sb strings.Builder

	c := in.Character
	sb.WriteString("## Character\n")
	fmt.Fprintf(&sb, "%s, level %d %s. HP %d/%d. Gold %d. XP %d.\n",
		c.Name, c.Level, c.Class, c.HP, c.MaxHP, c.Gold, c.Experience)
	fmt.Fprintf(&sb, "STR %d DEX %d CON %d INT %d WIS %d CHA %d\n",
		c.Abilities.Strength, c.Abilities.Dexterity, c.Abilities.Constitution,
		c.Abilities.Intelligence, c.Abilities.Wisdom, c.Abilities.Charisma)
	if len(c.Inventory) == 0 {
		sb.WriteString("Inventory: empty\n")
	} else {
		items := make([]string, 0, len(c.Inventory))
		for _, it := range c.Inventory {
			items = append(items, fmt.Sprintf("%s x%d", it.Name, it.Quantity))
		}
		fmt.Fprintf(&sb, "Inventory: %s\n", strings.Join(items, ", "))
	}
	if c.Dead {
		sb.WriteString("The character has died.\n")
	}

	if s := in.Session; s != nil {
		sb.WriteString("\n## Scene\n")
		if s.Location != "" {
			fmt.Fprintf(&sb, "Location: %s\n", s.Location)
		}
		if len(s.WorldState) > 0 {
			keys := make([]string, 0, len(s.WorldState))
			for k := range s.WorldState {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			flags := make([]string, 0, len(keys))
			for _, k := range keys {
				flags = append(flags, fmt.Sprintf("%s=%v", k, s.WorldState[k]))
			}
			fmt.Fprintf(&sb, "World: %s\n", strings.Join(flags, ", "))
		}
		if in.LootClaimed.Empty() && !s.PendingLoot.Empty() {
			sb.WriteString("Defeated foes nearby have not been searched yet.\n")
		}
	}

	if in.Combat != nil {
		writeCombat(&sb, in.Combat, in.CombatLog)
	}

	if in.Catalog != nil {
		switch in.Category {
		case intent.CategorySell:
			writeSellPrices(&sb, c, in.Catalog)
		case intent.CategoryBuy:
			writeShop(&sb, in.Catalog)
		}
	}

	if !in.LootClaimed.Empty() {
		sb.WriteString("\n## Loot found\n")
		writeLoot(&sb, in.LootClaimed, in.Catalog)
		sb.WriteString("These items are already in the inventory. Do not add them again.\n")
	}

	if len(in.Notes) > 0 {
		sb.WriteString("\n## Server notes\n")
		for _, n := range in.Notes {
			fmt.Fprintf(&sb, "- %s\n", n)
		}
	}

	return sb.String()
}

func writeCombat(sb *strings.Builder, state *entities.CombatState, log []entities.CombatLogEntry) {
	sb.WriteString("\n## Combat\n")
	fmt.Fprintf(sb, "Round %d, phase %s.\n", state.Round, state.Phase)
	for _, e := range state.Enemies {
		if e.Defeated() {
			fmt.Fprintf(sb, "- %s [%s]: defeated\n", e.Name, e.ID)
			continue
		}
		fmt.Fprintf(sb, "- %s [%s]: %d/%d hp\n", e.Name, e.ID, e.HP, e.MaxHP)
	}
	if len(log) > 0 {
		sb.WriteString("This turn (narrate exactly this):\n")
		for _, entry := range log {
			fmt.Fprintf(sb, "- %s\n", entry.Narrative)
		}
	}
	switch state.Outcome {
	case entities.OutcomeVictory:
		sb.WriteString("The fight is won. Do not declare another encounter this turn.\n")
	case entities.OutcomeDefeat:
		sb.WriteString("The character has fallen. Narrate their defeat.\n")
	case entities.OutcomeFled:
		sb.WriteString("The character escaped the fight.\n")
	}
}

func writeSellPrices(sb *strings.Builder, c *entities.Character, cat *catalog.Catalog) {
	if len(c.Inventory) == 0 {
		return
	}
	sb.WriteString("\n## Merchant offers\n")
	for _, it := range c.Inventory {
		price, err := cat.SellPrice(it.ItemID)
		if err != nil {
			fmt.Fprintf(sb, "- %s [%s]: not for sale\n", it.Name, it.ItemID)
			continue
		}
		fmt.Fprintf(sb, "- %s [%s]: %d gold\n", it.Name, it.ItemID, price)
	}
	sb.WriteString("Use commerce_sell with the bracketed id. One unit per sale.\n")
}

func writeShop(sb *strings.Builder, cat *catalog.Catalog) {
	sb.WriteString("\n## Shop stock\n")
	for _, id := range cat.IDs() {
		item, ok := cat.Lookup(id)
		if !ok || item.Type == entities.ItemTypeTreasure {
			continue
		}
		fmt.Fprintf(sb, "- %s [%s]: %d gold\n", item.Name, item.ID, item.Value)
	}
	sb.WriteString("Use commerce_buy with the bracketed id and the listed price.\n")
}

func writeLoot(sb *strings.Builder, loot *entities.PendingLoot, cat *catalog.Catalog) {
	if loot.Gold > 0 {
		fmt.Fprintf(sb, "- %d gold\n", loot.Gold)
	}
	for _, it := range loot.Items {
		name := it.ItemID
		if cat != nil {
			if item, ok := cat.Lookup(it.ItemID); ok {
				name = item.Name
			}
		}
		fmt.Fprintf(sb, "- %s x%d\n", name, it.Quantity)
	}
}

// Messages converts session history plus this turn into the conversation sent
// to the narrator. The context block rides on the final user message.
func Messages(history []entities.Message, contextBlock, action string) []narrator.Message {
	out := make([]narrator.Message, 0, len(history)+1)
	for _, m := range history {
		role := narrator.RoleUser
		if m.Role == entities.RoleNarrator {
			role = narrator.RoleAssistant
		}
		out = append(out, narrator.Message{Role: role, Content: m.Content})
	}
	out = append(out, narrator.Message{
		Role:    narrator.RoleUser,
		Content: fmt.Sprintf("%s\n## Player action\n%s", contextBlock, action),
	})
	return out
}
