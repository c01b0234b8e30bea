// Package commerce applies buy and sell transactions to a character.
// Each transaction works on a copy, so a rejected transaction leaves the
// caller's character exactly as it was.
package commerce

import (
	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
)

// Engine prices transactions from the catalog
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine creates a commerce engine
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// SellResult is a completed sale
type SellResult struct {
	Character  *entities.Character
	ItemID     string
	GoldGained int
}

// BuyResult is a completed purchase. GoldSpent is the catalog value;
// QuotedPrice is what the narrator declared.
type BuyResult struct {
	Character     *entities.Character
	ItemID        string
	GoldSpent     int
	QuotedPrice   int
	PriceMismatch bool
}

// Sell removes one unit of itemID for max(1, value/2) gold
func (e *Engine) Sell(character *entities.Character, itemID string) (*SellResult, error) {
	id := e.catalog.Normalize(itemID)
	if character.Quantity(id) < 1 {
		return nil, errors.InvalidArgumentf("you do not have %q to sell", itemID).
			WithMeta("item_id", id)
	}

	price, err := e.catalog.SellPrice(id)
	if err != nil {
		return nil, errors.FailedPreconditionf("%q cannot be sold here", itemID).
			WithMeta("item_id", id)
	}

	updated := character.Clone()
	if updated.RemoveItem(id, 1) != 1 {
		return nil, errors.Internal("inventory changed during sale")
	}
	updated.Gold += price

	return &SellResult{Character: updated, ItemID: id, GoldGained: price}, nil
}

// Buy adds one unit of itemID for its catalog value
func (e *Engine) Buy(character *entities.Character, itemID string, quotedPrice int) (*BuyResult, error) {
	item, ok := e.catalog.Lookup(itemID)
	if !ok {
		return nil, errors.InvalidArgumentf("%q is not for sale", itemID).
			WithMeta("item_id", entities.NormalizeItemID(itemID))
	}

	if item.Value > character.Gold {
		return nil, errors.FailedPreconditionf("%s costs %d gold but you have %d", item.Name, item.Value, character.Gold).
			WithMeta("item_id", item.ID).
			WithMeta("price", item.Value).
			WithMeta("gold", character.Gold)
	}

	stack, err := e.catalog.Stack(item.ID, 1)
	if err != nil {
		return nil, err
	}

	updated := character.Clone()
	updated.Gold -= item.Value
	updated.AddItem(stack)

	return &BuyResult{
		Character:     updated,
		ItemID:        item.ID,
		GoldSpent:     item.Value,
		QuotedPrice:   quotedPrice,
		PriceMismatch: quotedPrice > 0 && quotedPrice != item.Value,
	}, nil
}
