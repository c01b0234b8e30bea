package combat

import (
	"context"
	"fmt"
	"slices"

	"github.com/KirkDiggler/rpg-narrator/internal/engine/dice"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// ActInput is one player decision
type ActInput struct {
	State     *entities.CombatState
	Character *entities.Character
	Action    entities.CombatAction
}

// ActOutput is the state after the round resolved
type ActOutput struct {
	State     *entities.CombatState
	Character *entities.Character
	Rolls     []entities.DiceRoll
	// Loot is rolled on victory
	Loot         *entities.PendingLoot
	XPGained     int
	LevelsGained int
}

// Ended reports whether the round finished the encounter
func (o *ActOutput) Ended() bool {
	return o.State.Phase == entities.PhaseCombatEnd
}

type round struct {
	state     *entities.CombatState
	character *entities.Character
	rolls     []entities.DiceRoll
	fled      bool
}

func (r *round) log(entry entities.CombatLogEntry) {
	entry.Round = r.state.Round
	r.state.Log = append(r.state.Log, entry)
	r.rolls = append(r.rolls, entry.Rolls...)
}

// Act validates the action, then runs resolve_player, enemy_turn and either
// returns to player_turn or ends the encounter
func (m *Machine) Act(ctx context.Context, input *ActInput) (*ActOutput, error) {
	if input == nil || input.Character == nil {
		return nil, errors.InvalidArgument("character is required")
	}
	if err := m.Validate(input.State, input.Character, input.Action); err != nil {
		return nil, err
	}

	r := &round{
		state:     input.State.Clone(),
		character: input.Character.Clone(),
	}
	r.state.Defending = false
	transition(r.state, entities.PhaseResolvePlayer)

	var err error
	switch input.Action.Type {
	case entities.ActionAttack:
		err = m.playerAttack(ctx, r, input.Action.TargetID)
	case entities.ActionDefend:
		r.state.Defending = true
		r.log(entities.CombatLogEntry{
			Actor:     r.character.ID,
			Action:    string(entities.ActionDefend),
			Narrative: fmt.Sprintf("%s takes a defensive stance.", r.character.Name),
		})
	case entities.ActionFlee:
		err = m.playerFlee(r)
	case entities.ActionUseItem:
		err = m.playerUseItem(r, input.Action.ItemID)
	}
	if err != nil {
		return nil, err
	}

	out := &ActOutput{}

	switch {
	case len(r.state.Surviving()) == 0:
		if err := m.victory(ctx, r, out); err != nil {
			return nil, err
		}
	case r.fled:
		r.state.Outcome = entities.OutcomeFled
		transition(r.state, entities.PhaseCombatEnd)
		m.publish(ctx, EventEnd, playerCombatant(r.character), nil)
	default:
		transition(r.state, entities.PhaseEnemyTurn)
		if err := m.enemyTurn(ctx, r); err != nil {
			return nil, err
		}
		if r.character.HP <= 0 {
			r.character.HP = 0
			r.character.Dead = true
			r.state.Outcome = entities.OutcomeDefeat
			transition(r.state, entities.PhaseCombatEnd)
			m.publish(ctx, EventPlayerDefeated, nil, playerCombatant(r.character))
			m.publish(ctx, EventEnd, playerCombatant(r.character), nil)
		} else {
			r.state.Round++
			transition(r.state, entities.PhasePlayerTurn)
		}
	}

	r.character.Normalize()
	out.State = r.state
	out.Character = r.character
	out.Rolls = r.rolls
	return out, nil
}

func (m *Machine) playerAttack(ctx context.Context, r *round, targetID string) error {
	target := r.state.Enemy(targetID)
	c := r.character

	attackMod := c.AttackAbilityModifier() + c.ProficiencyBonus()
	hit, err := m.dice.Check(c.Name+" attack", attackMod, target.AC)
	if err != nil {
		return err
	}

	entry := entities.CombatLogEntry{
		Actor:  c.ID,
		Action: string(entities.ActionAttack),
		Target: target.ID,
		Rolls:  []entities.DiceRoll{hit},
	}

	weapon, notation := m.weaponDamage(c)
	if !hit.Success {
		entry.Narrative = fmt.Sprintf("%s swings %s at %s and misses.", c.Name, weapon, target.Name)
		r.log(entry)
		m.publish(ctx, EventAttack, playerCombatant(c), enemyCombatant(target))
		return nil
	}

	dmg, err := m.dice.RollNotation(c.Name+" damage", notation.WithModifier(c.AttackAbilityModifier()), hit.Critical)
	if err != nil {
		return err
	}
	damage := max(1, dmg.Total)
	target.HP = max(0, target.HP-damage)

	entry.Rolls = append(entry.Rolls, dmg)
	entry.Damage = damage
	entry.Narrative = fmt.Sprintf("%s hits %s with %s for %d damage.", c.Name, target.Name, weapon, damage)
	if hit.Critical {
		entry.Narrative = fmt.Sprintf("Critical hit! %s", entry.Narrative)
	}
	r.log(entry)
	m.publish(ctx, EventAttack, playerCombatant(c), enemyCombatant(target))

	if target.Defeated() {
		r.state.ValidTargets = slices.DeleteFunc(r.state.ValidTargets, func(id string) bool {
			return id == target.ID
		})
		r.log(entities.CombatLogEntry{
			Actor:     target.ID,
			Action:    "defeated",
			Narrative: fmt.Sprintf("%s falls.", target.Name),
		})
		m.publish(ctx, EventEnemyDefeated, playerCombatant(c), enemyCombatant(target))
	}
	return nil
}

func (m *Machine) playerFlee(r *round) error {
	c := r.character
	mod := entities.AbilityModifier(c.Abilities.Dexterity)
	if r.state.PlayerWonInitiative {
		mod += fleeInitiativeBonus
	}
	dc := fleeBaseDC + fleePerEnemy*len(r.state.Surviving())

	check, err := m.dice.Check(c.Name+" flee", mod, dc)
	if err != nil {
		return err
	}

	entry := entities.CombatLogEntry{
		Actor:  c.ID,
		Action: string(entities.ActionFlee),
		Rolls:  []entities.DiceRoll{check},
	}
	if check.Success {
		r.fled = true
		entry.Narrative = fmt.Sprintf("%s breaks away and escapes.", c.Name)
	} else {
		entry.Narrative = fmt.Sprintf("%s tries to flee but is cut off.", c.Name)
	}
	r.log(entry)
	return nil
}

func (m *Machine) playerUseItem(r *round, itemID string) error {
	c := r.character
	item, _ := m.usable(c, itemID)

	effect, err := m.dice.Roll(item.Name, item.UseEffect.Notation)
	if err != nil {
		return err
	}
	if c.RemoveItem(item.ID, 1) != 1 {
		return errors.Internal("inventory changed while using item")
	}

	before := c.HP
	c.HP = min(c.MaxHP, c.HP+max(0, effect.Total))

	r.log(entities.CombatLogEntry{
		Actor:     c.ID,
		Action:    string(entities.ActionUseItem),
		Target:    c.ID,
		Rolls:     []entities.DiceRoll{effect},
		Narrative: fmt.Sprintf("%s uses %s and recovers %d hit points.", c.Name, item.Name, c.HP-before),
	})
	return nil
}

func (m *Machine) enemyTurn(ctx context.Context, r *round) error {
	c := r.character
	ac := m.PlayerAC(c, r.state.Defending)

	for _, enemy := range r.state.Surviving() {
		hit, err := m.dice.Check(enemy.Name+" attack", enemy.AttackBonus, ac)
		if err != nil {
			return err
		}

		entry := entities.CombatLogEntry{
			Actor:  enemy.ID,
			Action: string(entities.ActionAttack),
			Target: c.ID,
			Rolls:  []entities.DiceRoll{hit},
		}

		if !hit.Success {
			entry.Narrative = fmt.Sprintf("%s attacks %s and misses.", enemy.Name, c.Name)
			r.log(entry)
			m.publish(ctx, EventAttack, enemyCombatant(enemy), playerCombatant(c))
			continue
		}

		notation, err := dice.ParseNotation(enemy.Damage)
		if err != nil {
			return errors.Wrapf(err, "enemy %s has bad damage dice", enemy.ID)
		}
		dmg, err := m.dice.RollNotation(enemy.Name+" damage", notation, hit.Critical)
		if err != nil {
			return err
		}
		damage := max(1, dmg.Total)
		c.HP = max(0, c.HP-damage)

		entry.Rolls = append(entry.Rolls, dmg)
		entry.Damage = damage
		entry.Narrative = fmt.Sprintf("%s hits %s for %d damage.", enemy.Name, c.Name, damage)
		r.log(entry)
		m.publish(ctx, EventAttack, enemyCombatant(enemy), playerCombatant(c))

		if c.HP == 0 {
			return nil
		}
	}
	return nil
}

func (m *Machine) victory(ctx context.Context, r *round, out *ActOutput) error {
	pending, err := m.loot.RollLoot(r.state.Enemies)
	if err != nil {
		return err
	}
	pending.Source = "combat"

	xp := 0
	for _, e := range r.state.Enemies {
		xp += e.XP
	}
	out.XPGained = xp
	out.LevelsGained = r.character.GainExperience(xp)
	out.Loot = pending

	r.state.ValidTargets = nil
	r.state.Outcome = entities.OutcomeVictory
	transition(r.state, entities.PhaseCombatEnd)
	r.log(entities.CombatLogEntry{
		Actor:     r.character.ID,
		Action:    "victory",
		Narrative: fmt.Sprintf("%s is victorious and gains %d experience.", r.character.Name, xp),
	})
	m.publish(ctx, EventEnd, playerCombatant(r.character), nil)
	return nil
}
