// Package combat runs the per-session combat state machine.
//
//	combat_start -> player_turn -> resolve_player -> enemy_turn -> player_turn ...
//	                                     |               |
//	                                     +-> combat_end <-+
//
// The machine never mutates the state or character it is given. Start and Act
// return updated copies, so a caller can discard them if a later step fails.
package combat

import (
	"context"
	"fmt"
	"slices"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/dice"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/loot"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

const (
	// MaxEnemies caps the roster of a single encounter
	MaxEnemies = 8

	baseAC              = 10
	defendACBonus       = 2
	fleeBaseDC          = 10
	fleePerEnemy        = 2
	fleeInitiativeBonus = 2
)

// Config holds the machine's dependencies
type Config struct {
	Dice     *dice.Engine
	Catalog  *catalog.Catalog
	Bestiary *catalog.Bestiary
	Loot     *loot.Engine
	// EventBus is optional
	EventBus events.EventBus
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Dice == nil {
		vb.RequiredField("Dice")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.Bestiary == nil {
		vb.RequiredField("Bestiary")
	}
	if c.Loot == nil {
		vb.RequiredField("Loot")
	}

	return vb.Build()
}

// Machine resolves encounters
type Machine struct {
	dice     *dice.Engine
	catalog  *catalog.Catalog
	bestiary *catalog.Bestiary
	loot     *loot.Engine
	bus      events.EventBus
}

// NewMachine creates a combat machine
func NewMachine(cfg *Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Machine{
		dice:     cfg.Dice,
		catalog:  cfg.Catalog,
		bestiary: cfg.Bestiary,
		loot:     cfg.Loot,
		bus:      cfg.EventBus,
	}, nil
}

// StartInput begins an encounter
type StartInput struct {
	Character         *entities.Character
	Encounter         *entities.Encounter
	InitiatedByPlayer bool
}

// StartOutput is a new encounter at player_turn
type StartOutput struct {
	State *entities.CombatState
	Rolls []entities.DiceRoll
}

// Start builds the roster, rolls initiative and advances to player_turn
func (m *Machine) Start(ctx context.Context, input *StartInput) (*StartOutput, error) {
	if input == nil || input.Character == nil {
		return nil, errors.InvalidArgument("character is required")
	}
	if input.Encounter == nil || len(input.Encounter.Enemies) == 0 {
		return nil, errors.InvalidArgument("encounter needs at least one enemy")
	}

	state := &entities.CombatState{
		Round:             1,
		Phase:             entities.PhaseCombatStart,
		Transitions:       []entities.Phase{entities.PhaseCombatStart},
		InitiatedByPlayer: input.InitiatedByPlayer,
	}

	var rolls []entities.DiceRoll
	bestInitiative := 0
	for _, declared := range input.Encounter.Enemies {
		tmpl := m.bestiary.Resolve(declared)
		bestInitiative = max(bestInitiative, tmpl.InitiativeBonus)

		count := max(1, declared.Count)
		for n := 1; n <= count && len(state.Enemies) < MaxEnemies; n++ {
			enemy, roll, err := m.spawn(tmpl, len(state.Enemies)+1, n, count)
			if err != nil {
				return nil, err
			}
			if roll != nil {
				rolls = append(rolls, *roll)
			}
			state.Enemies = append(state.Enemies, enemy)
		}
	}

	dexMod := entities.AbilityModifier(input.Character.Abilities.Dexterity)
	playerInit, err := m.dice.RollNotation("player initiative", dice.Notation{Count: 1, Size: 20, Modifier: dexMod}, false)
	if err != nil {
		return nil, err
	}
	enemyInit, err := m.dice.RollNotation("enemy initiative", dice.Notation{Count: 1, Size: 20, Modifier: bestInitiative}, false)
	if err != nil {
		return nil, err
	}
	state.PlayerWonInitiative = playerInit.Total >= enemyInit.Total
	playerInit.Target = enemyInit.Total
	playerInit.Success = state.PlayerWonInitiative
	enemyInit.Target = playerInit.Total
	enemyInit.Success = !state.PlayerWonInitiative
	rolls = append(rolls, playerInit, enemyInit)

	narrative := "The enemies are quicker to act."
	if state.PlayerWonInitiative {
		narrative = fmt.Sprintf("%s seizes the initiative.", input.Character.Name)
	}
	state.Log = append(state.Log, entities.CombatLogEntry{
		Round:     0,
		Actor:     input.Character.ID,
		Action:    "initiative",
		Rolls:     []entities.DiceRoll{playerInit, enemyInit},
		Narrative: narrative,
	})

	for _, e := range state.Enemies {
		state.ValidTargets = append(state.ValidTargets, e.ID)
	}
	transition(state, entities.PhasePlayerTurn)

	m.publish(ctx, EventStart, playerCombatant(input.Character), nil)

	return &StartOutput{State: state, Rolls: rolls}, nil
}

func (m *Machine) spawn(tmpl catalog.Template, index, n, count int) (entities.Enemy, *entities.DiceRoll, error) {
	name := tmpl.Name
	if count > 1 {
		name = fmt.Sprintf("%s %d", tmpl.Name, n)
	}
	enemy := entities.Enemy{
		ID:          fmt.Sprintf("enemy_%d", index),
		Name:        name,
		Kind:        tmpl.Kind,
		AC:          tmpl.AC,
		AttackBonus: tmpl.AttackBonus,
		Damage:      tmpl.Damage,
		XP:          tmpl.XP,
		LootTable:   tmpl.LootTable,
	}

	if tmpl.FixedHP > 0 {
		enemy.HP = tmpl.FixedHP
		enemy.MaxHP = tmpl.FixedHP
		return enemy, nil, nil
	}

	roll, err := m.dice.Roll(name+" hit points", tmpl.HPDice)
	if err != nil {
		return entities.Enemy{}, nil, err
	}
	enemy.HP = max(1, roll.Total)
	enemy.MaxHP = enemy.HP
	return enemy, &roll, nil
}

func transition(state *entities.CombatState, to entities.Phase) {
	state.Phase = to
	state.Transitions = append(state.Transitions, to)
}

func playerCombatant(c *entities.Character) *Combatant {
	return &Combatant{ID: c.ID, Kind: "character", Name: c.Name, HP: c.HP, MaxHP: c.MaxHP}
}

func enemyCombatant(e *entities.Enemy) *Combatant {
	return &Combatant{ID: e.ID, Kind: e.Kind, Name: e.Name, HP: e.HP, MaxHP: e.MaxHP}
}

// PlayerAC is 10 + DEX modifier + best body armor + shield, +2 while defending
func (m *Machine) PlayerAC(c *entities.Character, defending bool) int {
	ac := baseAC + entities.AbilityModifier(c.Abilities.Dexterity)
	bestArmor, shield := 0, 0
	for _, stack := range c.Inventory {
		item, ok := m.catalog.Lookup(stack.ItemID)
		if !ok || item.Type != entities.ItemTypeArmor {
			continue
		}
		if item.ID == "shield" {
			shield = item.ArmorBonus
			continue
		}
		bestArmor = max(bestArmor, item.ArmorBonus)
	}
	ac += bestArmor + shield
	if defending {
		ac += defendACBonus
	}
	return ac
}

// weaponDamage picks the weapon with the highest average damage
func (m *Machine) weaponDamage(c *entities.Character) (string, dice.Notation) {
	best := dice.Notation{Count: 1, Size: 2}
	bestName, bestAvg := "fists", average(best)
	for _, stack := range c.Inventory {
		item, ok := m.catalog.Lookup(stack.ItemID)
		if !ok || item.Type != entities.ItemTypeWeapon || item.Damage == "" {
			continue
		}
		n, err := dice.ParseNotation(item.Damage)
		if err != nil {
			continue
		}
		if avg := average(n); avg > bestAvg {
			best, bestName, bestAvg = n, item.Name, avg
		}
	}
	return bestName, best
}

func average(n dice.Notation) float64 {
	return float64(n.Count)*float64(n.Size+1)/2 + float64(n.Modifier)
}

// usable reports whether itemID is a consumable with a use effect the character holds
func (m *Machine) usable(c *entities.Character, itemID string) (catalog.Item, bool) {
	item, ok := m.catalog.Lookup(itemID)
	if !ok || item.Type != entities.ItemTypeConsumable || item.UseEffect == nil {
		return catalog.Item{}, false
	}
	return item, c.Quantity(item.ID) > 0
}

// AvailableActions lists what the player may do at the current decision point
func (m *Machine) AvailableActions(state *entities.CombatState, c *entities.Character) []entities.ActionType {
	if state == nil || state.Phase != entities.PhasePlayerTurn {
		return nil
	}
	var out []entities.ActionType
	if len(state.ValidTargets) > 0 {
		out = append(out, entities.ActionAttack)
	}
	out = append(out, entities.ActionDefend, entities.ActionFlee)
	for _, stack := range c.Inventory {
		if _, ok := m.usable(c, stack.ItemID); ok {
			out = append(out, entities.ActionUseItem)
			break
		}
	}
	return out
}

// Validate checks a player action against the current decision point without
// rolling anything
func (m *Machine) Validate(state *entities.CombatState, c *entities.Character, action entities.CombatAction) error {
	if state == nil || state.Phase == entities.PhaseCombatEnd {
		return errors.FailedPrecondition("there is no active combat")
	}
	if state.Phase != entities.PhasePlayerTurn {
		return errors.FailedPreconditionf("combat is in phase %s, not player_turn", state.Phase)
	}

	switch action.Type {
	case entities.ActionAttack:
		if action.TargetID == "" {
			return errors.InvalidArgument("attack requires a target").
				WithMeta("valid_targets", slices.Clone(state.ValidTargets))
		}
		if !state.IsValidTarget(action.TargetID) {
			return errors.InvalidArgumentf("%q is not a valid target", action.TargetID).
				WithMeta("target_id", action.TargetID).
				WithMeta("valid_targets", slices.Clone(state.ValidTargets))
		}
	case entities.ActionDefend, entities.ActionFlee:
	case entities.ActionUseItem:
		if action.ItemID == "" {
			return errors.InvalidArgument("use_item requires an item")
		}
		if c.Quantity(m.catalog.Normalize(action.ItemID)) < 1 {
			return errors.InvalidArgumentf("you do not have %q", action.ItemID).
				WithMeta("item_id", action.ItemID)
		}
		if _, ok := m.usable(c, action.ItemID); !ok {
			return errors.InvalidArgumentf("%q cannot be used in combat", action.ItemID).
				WithMeta("item_id", action.ItemID)
		}
	default:
		return errors.InvalidArgumentf("unknown combat action %q", action.Type).
			WithMeta("available_actions", m.AvailableActions(state, c))
	}
	return nil
}
