// Package economy is the server-side veto on narrator-declared value.
//
// The narrator can never add gold or items on its own. Value enters a
// character only through a commerce directive, which the commerce engine
// prices from the catalog, or through claiming the session's PendingLoot with
// a recognized search action. Losses, hit points, experience and location
// pass through and are bounded when applied; experience only ever grows.
package economy

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/KirkDiggler/rpg-narrator/internal/engine/intent"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// Rejection reasons
const (
	ReasonUngatedGold      = "ungated gold grant"
	ReasonUngatedItem      = "ungated item grant"
	ReasonCombatAuthority  = "combat outcome is resolved by the engine"
	ReasonCommerceInCombat = "commerce is unavailable during combat"
	ReasonNotInInventory   = "item not in inventory"
	ReasonEncounterActive  = "an encounter is already active"
	ReasonExperienceLoss   = "experience is never taken away"
)

// GuardContext is the session state the guard decides against
type GuardContext struct {
	Category    intent.Category
	PendingLoot *entities.PendingLoot
	InCombat    bool
}

// Rejection records one stripped delta
type Rejection struct {
	Field  string `json:"field"`
	Amount int    `json:"amount,omitempty"`
	ItemID string `json:"item_id,omitempty"`
	Reason string `json:"reason"`
}

// Decision is the filtered intent plus everything that was stripped
type Decision struct {
	Approved   entities.StateChangeIntent
	Rejections []Rejection
	// LootClaim is the server-held PendingLoot to grant, or nil
	LootClaim *entities.PendingLoot
}

// Filter strips ungated value from in. It does not mutate its inputs and
// returns the same Decision for the same arguments.
func Filter(in *entities.StateChangeIntent, character *entities.Character, gc GuardContext) Decision {
	var d Decision

	if gc.Category == intent.CategorySearch && !gc.InCombat && !gc.PendingLoot.Empty() {
		claim := *gc.PendingLoot
		claim.Items = slices.Clone(gc.PendingLoot.Items)
		d.LootClaim = &claim
	}

	if in.IsZero() {
		return d
	}

	d.Approved.WorldState = maps.Clone(in.WorldState)
	d.Approved.Checks = slices.Clone(in.Checks)

	switch {
	case in.GoldDelta > 0:
		d.reject("gold_delta", in.GoldDelta, "", ReasonUngatedGold)
	case in.GoldDelta < 0:
		d.Approved.GoldDelta = in.GoldDelta
	}

	for _, add := range in.AddItems {
		d.reject("add_items", add.Quantity, add.ItemID, ReasonUngatedItem)
	}

	if gc.InCombat {
		d.filterCombat(in)
		return d
	}

	d.Approved.HPDelta = in.HPDelta
	d.Approved.Location = in.Location
	if in.XPDelta < 0 {
		d.reject("xp_delta", in.XPDelta, "", ReasonExperienceLoss)
	} else {
		d.Approved.XPDelta = in.XPDelta
	}

	for _, rm := range in.RemoveItems {
		if character == nil || character.Quantity(rm.ItemID) == 0 {
			d.reject("remove_items", rm.Quantity, rm.ItemID, ReasonNotInInventory)
			continue
		}
		d.Approved.RemoveItems = append(d.Approved.RemoveItems, rm)
	}

	if in.CommerceSell != nil {
		sell := *in.CommerceSell
		d.Approved.CommerceSell = &sell
	}
	if in.CommerceBuy != nil {
		buy := *in.CommerceBuy
		d.Approved.CommerceBuy = &buy
	}
	if in.Encounter != nil {
		enc := entities.Encounter{Enemies: slices.Clone(in.Encounter.Enemies)}
		d.Approved.Encounter = &enc
	}

	return d
}

func (d *Decision) filterCombat(in *entities.StateChangeIntent) {
	if in.HPDelta != 0 {
		d.reject("hp_delta", in.HPDelta, "", ReasonCombatAuthority)
	}
	if in.XPDelta != 0 {
		d.reject("xp_delta", in.XPDelta, "", ReasonCombatAuthority)
	}
	if in.Location != "" {
		d.reject("location", 0, "", ReasonCombatAuthority)
	}
	for _, rm := range in.RemoveItems {
		d.reject("remove_items", rm.Quantity, rm.ItemID, ReasonCombatAuthority)
	}
	if in.CommerceSell != nil {
		d.reject("commerce_sell", 0, in.CommerceSell.ItemID, ReasonCommerceInCombat)
	}
	if in.CommerceBuy != nil {
		d.reject("commerce_buy", in.CommerceBuy.Price, in.CommerceBuy.ItemID, ReasonCommerceInCombat)
	}
	if in.Encounter != nil {
		d.reject("encounter", 0, "", ReasonEncounterActive)
	}
}

func (d *Decision) reject(field string, amount int, itemID, reason string) {
	d.Rejections = append(d.Rejections, Rejection{
		Field:  field,
		Amount: amount,
		ItemID: itemID,
		Reason: reason,
	})
}

// LogRejections writes the audit trail for stripped deltas
func LogRejections(ctx context.Context, sessionID string, rejections []Rejection) {
	for _, r := range rejections {
		slog.WarnContext(ctx, "economy guard rejected narrator delta",
			"session_id", sessionID,
			"field", r.Field,
			"amount", r.Amount,
			"item_id", r.ItemID,
			"reason", r.Reason)
	}
}
