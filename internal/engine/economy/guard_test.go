package economy_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-narrator/internal/engine/economy"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/intent"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

type GuardTestSuite struct {
	suite.Suite
	character *entities.Character
	loot      *entities.PendingLoot
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardTestSuite))
}

func (s *GuardTestSuite) SetupTest() {
	s.character = &entities.Character{
		ID:    "char_1",
		HP:    10,
		MaxHP: 12,
		Gold:  5,
		Inventory: []entities.InventoryItem{
			{ItemID: "torch", Name: "Torch", Quantity: 2, Type: entities.ItemTypeGear},
		},
	}
	s.loot = &entities.PendingLoot{Gold: 7, Items: []entities.LootItem{{ItemID: "dagger", Quantity: 1}}}
}

func (s *GuardTestSuite) TestStripsUngatedGrants() {
	in := &entities.StateChangeIntent{
		GoldDelta: 1000,
		AddItems:  []entities.ItemDelta{{ItemID: "gemstone", Quantity: 5}},
		HPDelta:   -3,
		XPDelta:   25,
		Location:  "Crypt",
	}

	d := economy.Filter(in, s.character, economy.GuardContext{Category: intent.CategoryNone})

	s.Zero(d.Approved.GoldDelta)
	s.Empty(d.Approved.AddItems)
	s.Equal(-3, d.Approved.HPDelta)
	s.Equal(25, d.Approved.XPDelta)
	s.Equal("Crypt", d.Approved.Location)
	s.Nil(d.LootClaim)
	s.Equal([]economy.Rejection{
		{Field: "gold_delta", Amount: 1000, Reason: economy.ReasonUngatedGold},
		{Field: "add_items", Amount: 5, ItemID: "gemstone", Reason: economy.ReasonUngatedItem},
	}, d.Rejections)
}

func (s *GuardTestSuite) TestIdempotentAcrossRetries() {
	in := &entities.StateChangeIntent{GoldDelta: 50, AddItems: []entities.ItemDelta{{ItemID: "sword", Quantity: 1}}}
	gc := economy.GuardContext{Category: intent.CategoryBuy}

	first := economy.Filter(in, s.character, gc)
	for range 5 {
		again := economy.Filter(in, s.character, gc)
		s.Equal(first, again)
	}

	refiltered := economy.Filter(&first.Approved, s.character, gc)
	s.Equal(first.Approved, refiltered.Approved)
	s.Empty(refiltered.Rejections)
}

func (s *GuardTestSuite) TestLossesPassThrough() {
	in := &entities.StateChangeIntent{
		GoldDelta:   -2,
		RemoveItems: []entities.ItemDelta{{ItemID: "torch", Quantity: 1}, {ItemID: "rope", Quantity: 1}},
	}

	d := economy.Filter(in, s.character, economy.GuardContext{})

	s.Equal(-2, d.Approved.GoldDelta)
	s.Equal([]entities.ItemDelta{{ItemID: "torch", Quantity: 1}}, d.Approved.RemoveItems)
	s.Equal([]economy.Rejection{
		{Field: "remove_items", Amount: 1, ItemID: "rope", Reason: economy.ReasonNotInInventory},
	}, d.Rejections)
}

func (s *GuardTestSuite) TestCommerceChannelPasses() {
	in := &entities.StateChangeIntent{
		CommerceSell: &entities.CommerceSell{ItemID: "torch"},
		CommerceBuy:  &entities.CommerceBuy{ItemID: "sword", Price: 1},
	}

	d := economy.Filter(in, s.character, economy.GuardContext{Category: intent.CategorySell})

	s.Require().NotNil(d.Approved.CommerceSell)
	s.Require().NotNil(d.Approved.CommerceBuy)
	s.Empty(d.Rejections)
}

func (s *GuardTestSuite) TestLootClaim() {
	testCases := []struct {
		name     string
		gc       economy.GuardContext
		expected bool
	}{
		{name: "search with pending loot", gc: economy.GuardContext{Category: intent.CategorySearch, PendingLoot: s.loot}, expected: true},
		{name: "search without loot", gc: economy.GuardContext{Category: intent.CategorySearch}, expected: false},
		{name: "other action with loot", gc: economy.GuardContext{Category: intent.CategoryNone, PendingLoot: s.loot}, expected: false},
		{name: "search during combat", gc: economy.GuardContext{Category: intent.CategorySearch, PendingLoot: s.loot, InCombat: true}, expected: false},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// the narrator's own numbers never matter
			in := &entities.StateChangeIntent{GoldDelta: 999}
			d := economy.Filter(in, s.character, tc.gc)
			s.Zero(d.Approved.GoldDelta)
			if !tc.expected {
				s.Nil(d.LootClaim)
				return
			}
			s.Require().NotNil(d.LootClaim)
			s.Equal(*s.loot, *d.LootClaim)
			s.NotSame(s.loot, d.LootClaim)
		})
	}
}

func (s *GuardTestSuite) TestCombatIsAuthoritative() {
	in := &entities.StateChangeIntent{
		HPDelta:      -50,
		XPDelta:      500,
		Location:     "Far away",
		RemoveItems:  []entities.ItemDelta{{ItemID: "torch", Quantity: 1}},
		CommerceSell: &entities.CommerceSell{ItemID: "torch"},
		Encounter:    &entities.Encounter{Enemies: []entities.EncounterEnemy{{Kind: "ogre", Count: 1}}},
		WorldState:   map[string]any{"bridge_burning": true},
	}

	d := economy.Filter(in, s.character, economy.GuardContext{InCombat: true})

	s.Zero(d.Approved.HPDelta)
	s.Zero(d.Approved.XPDelta)
	s.Empty(d.Approved.Location)
	s.Empty(d.Approved.RemoveItems)
	s.Nil(d.Approved.CommerceSell)
	s.Nil(d.Approved.Encounter)
	s.Equal(true, d.Approved.WorldState["bridge_burning"])
	s.Len(d.Rejections, 6)
}

func (s *GuardTestSuite) TestDoesNotMutateInput() {
	in := &entities.StateChangeIntent{
		GoldDelta:  10,
		WorldState: map[string]any{"a": 1},
	}
	d := economy.Filter(in, s.character, economy.GuardContext{})
	d.Approved.WorldState["a"] = 2

	s.Equal(10, in.GoldDelta)
	s.Equal(1, in.WorldState["a"])
}

func (s *GuardTestSuite) TestNilIntent() {
	d := economy.Filter(nil, s.character, economy.GuardContext{Category: intent.CategorySearch, PendingLoot: s.loot})
	s.True(d.Approved.IsZero())
	s.NotNil(d.LootClaim)
}

func (s *GuardTestSuite) TestEmptyIntentApprovesNothing() {
	d := economy.Filter(&entities.StateChangeIntent{}, s.character, economy.GuardContext{})
	s.True(d.Approved.IsZero())
	s.Empty(d.Rejections)
}

func (s *GuardTestSuite) TestExperienceLossIsRejected() {
	in := &entities.StateChangeIntent{XPDelta: -40, HPDelta: -2}

	d := economy.Filter(in, s.character, economy.GuardContext{})

	s.Zero(d.Approved.XPDelta)
	s.Equal(-2, d.Approved.HPDelta)
	s.Equal([]economy.Rejection{
		{Field: "xp_delta", Amount: -40, Reason: economy.ReasonExperienceLoss},
	}, d.Rejections)
}
