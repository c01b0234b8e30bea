package action

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/KirkDiggler/rpg-narrator/internal/engine/combat"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/economy"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/intent"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// resolveCombatAction returns the validated action for a player_turn. A
// structured action wins; otherwise one is derived from the text when the
// text names exactly one thing to do.
func (o *orchestrator) resolveCombatAction(t *turn) (*entities.CombatAction, error) {
	action := t.input.CombatAction
	if action == nil {
		derived, err := o.deriveCombatAction(t)
		if err != nil {
			return nil, err
		}
		action = derived
	}
	if err := o.combat.Validate(t.session.Combat, t.character, *action); err != nil {
		return nil, err
	}
	return action, nil
}

func (o *orchestrator) deriveCombatAction(t *turn) (*entities.CombatAction, error) {
	state := t.session.Combat
	text := strings.ToLower(t.input.ActionText)

	switch t.category {
	case intent.CategoryDefend:
		return &entities.CombatAction{Type: entities.ActionDefend}, nil
	case intent.CategoryFlee:
		return &entities.CombatAction{Type: entities.ActionFlee}, nil
	case intent.CategoryAttack:
		if id, ok := pickTarget(state, text); ok {
			return &entities.CombatAction{Type: entities.ActionAttack, TargetID: id}, nil
		}
		return nil, errors.InvalidArgument("name the enemy to attack").
			WithMeta("valid_targets", slices.Clone(state.ValidTargets))
	case intent.CategoryUseItem:
		for _, stack := range t.character.Inventory {
			if mentions(text, stack.Name) || mentions(text, strings.ReplaceAll(stack.ItemID, "_", " ")) {
				return &entities.CombatAction{Type: entities.ActionUseItem, ItemID: stack.ItemID}, nil
			}
		}
		return nil, errors.InvalidArgument("name the item to use")
	}

	return nil, errors.InvalidArgument("choose a combat action").
		WithMeta("available_actions", o.combat.AvailableActions(state, t.character)).
		WithMeta("valid_targets", slices.Clone(state.ValidTargets))
}

// pickTarget resolves free text to a single valid target. Ambiguous text
// resolves to nothing.
func pickTarget(state *entities.CombatState, text string) (string, bool) {
	if len(state.ValidTargets) == 1 {
		return state.ValidTargets[0], true
	}

	var byName, byKind []string
	for _, id := range state.ValidTargets {
		e := state.Enemy(id)
		if e == nil {
			continue
		}
		if mentions(text, id) || mentions(text, e.Name) {
			byName = append(byName, id)
		}
		if mentions(text, e.Kind) {
			byKind = append(byKind, id)
		}
	}
	switch {
	case len(byName) == 1:
		return byName[0], true
	case len(byName) == 0 && len(byKind) == 1:
		return byKind[0], true
	}
	return "", false
}

func mentions(text, name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	return name != "" && strings.Contains(text, name)
}

// apply folds the guard-approved intent into the working copies
func (o *orchestrator) apply(ctx context.Context, t *turn, approved *entities.StateChangeIntent) error {
	c := t.character
	applied := &t.out.Applied

	for _, check := range approved.Checks {
		roll, err := o.dice.CheckNotation(check.Label, check.Notation, check.DC)
		if err != nil {
			slog.WarnContext(ctx, "skipping narrator check",
				"session_id", t.session.ID,
				"label", check.Label,
				"notation", check.Notation,
				"error", err)
			continue
		}
		t.out.Rolls = append(t.out.Rolls, roll)
	}

	if approved.HPDelta != 0 {
		before := c.HP
		// clamp before adding so the sum cannot wrap
		c.HP += max(-c.HP, min(c.MaxHP-c.HP, approved.HPDelta))
		applied.HPDelta += c.HP - before
		if c.HP == 0 && before > 0 {
			c.Dead = true
		}
	}

	if approved.GoldDelta < 0 {
		before := c.Gold
		c.Gold += max(-c.Gold, approved.GoldDelta)
		applied.GoldDelta += c.Gold - before
	}

	if approved.XPDelta > 0 {
		applied.LevelsGained += c.GainExperience(approved.XPDelta)
		applied.XPDelta += approved.XPDelta
	}

	for _, rm := range approved.RemoveItems {
		if approved.CommerceSell != nil && entities.NormalizeItemID(rm.ItemID) == entities.NormalizeItemID(approved.CommerceSell.ItemID) {
			// the sale removes it
			continue
		}
		if removed := c.RemoveItem(rm.ItemID, rm.Quantity); removed > 0 {
			applied.ItemsRemoved = append(applied.ItemsRemoved, entities.ItemDelta{ItemID: entities.NormalizeItemID(rm.ItemID), Quantity: removed})
		}
	}

	if approved.Location != "" {
		t.session.Location = approved.Location
		applied.Location = approved.Location
	}
	if len(approved.WorldState) > 0 {
		if t.session.WorldState == nil {
			t.session.WorldState = make(map[string]any, len(approved.WorldState))
		}
		for k, v := range approved.WorldState {
			if v == nil {
				delete(t.session.WorldState, k)
				continue
			}
			t.session.WorldState[k] = v
		}
		applied.WorldState = maps.Clone(approved.WorldState)
	}

	if approved.CommerceSell != nil {
		o.sell(ctx, t, approved.CommerceSell.ItemID)
	}
	if approved.CommerceBuy != nil {
		o.buy(ctx, t, approved.CommerceBuy)
	}

	if approved.Encounter != nil && !t.wasCombat && !t.character.Dead {
		if err := o.startEncounter(ctx, t, approved.Encounter); err != nil {
			return err
		}
	}

	t.character.Normalize()
	return nil
}

func (o *orchestrator) sell(ctx context.Context, t *turn, itemID string) {
	result := CommerceResult{Kind: CommerceSell, ItemID: itemID}
	sold, err := o.commerce.Sell(t.character, itemID)
	if err != nil {
		slog.InfoContext(ctx, "sale refused",
			"session_id", t.session.ID,
			"item_id", itemID,
			"error", err)
		result.Error = errors.GetMessage(err)
		t.out.Commerce = append(t.out.Commerce, result)
		return
	}

	t.character = sold.Character
	result.ItemID = sold.ItemID
	result.Gold = sold.GoldGained
	t.out.Applied.GoldDelta += sold.GoldGained
	t.out.Applied.ItemsRemoved = append(t.out.Applied.ItemsRemoved, entities.ItemDelta{ItemID: sold.ItemID, Quantity: 1})
	t.out.Commerce = append(t.out.Commerce, result)
}

func (o *orchestrator) buy(ctx context.Context, t *turn, directive *entities.CommerceBuy) {
	result := CommerceResult{Kind: CommerceBuy, ItemID: directive.ItemID, QuotedPrice: directive.Price}
	bought, err := o.commerce.Buy(t.character, directive.ItemID, directive.Price)
	if err != nil {
		slog.InfoContext(ctx, "purchase refused",
			"session_id", t.session.ID,
			"item_id", directive.ItemID,
			"quoted_price", directive.Price,
			"error", err)
		result.Error = errors.GetMessage(err)
		t.out.Commerce = append(t.out.Commerce, result)
		return
	}

	if bought.PriceMismatch {
		slog.WarnContext(ctx, "narrator quoted a price that differs from the catalog",
			"session_id", t.session.ID,
			"item_id", bought.ItemID,
			"quoted_price", bought.QuotedPrice,
			"catalog_price", bought.GoldSpent)
	}
	t.character = bought.Character
	result.ItemID = bought.ItemID
	result.Gold = bought.GoldSpent
	result.PriceMismatch = bought.PriceMismatch
	t.out.Applied.GoldDelta -= bought.GoldSpent
	t.out.Applied.ItemsAdded = append(t.out.Applied.ItemsAdded, entities.ItemDelta{ItemID: bought.ItemID, Quantity: 1})
	t.out.Commerce = append(t.out.Commerce, result)
}

func (o *orchestrator) startEncounter(ctx context.Context, t *turn, enc *entities.Encounter) error {
	started, err := o.combat.Start(ctx, &combat.StartInput{
		Character:         t.character,
		Encounter:         enc,
		InitiatedByPlayer: t.category == intent.CategoryAttack,
	})
	if err != nil {
		if errors.IsInvalidArgument(err) {
			slog.WarnContext(ctx, "ignoring unusable encounter",
				"session_id", t.session.ID,
				"error", err)
			t.out.Rejections = append(t.out.Rejections, economy.Rejection{
				Field:  "encounter",
				Reason: errors.GetMessage(err),
			})
			return nil
		}
		return err
	}

	if !t.session.PendingLoot.Empty() {
		slog.InfoContext(ctx, "unclaimed loot discarded by new encounter",
			"session_id", t.session.ID,
			"gold", t.session.PendingLoot.Gold,
			"items", len(t.session.PendingLoot.Items))
		t.session.PendingLoot = nil
	}
	t.session.Combat = started.State
	t.combatState = started.State
	t.out.Rolls = append(t.out.Rolls, started.Rolls...)
	return nil
}
