package loot_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-narrator/internal/engine/dice"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/loot"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

type LootTestSuite struct {
	suite.Suite
	roster []entities.Enemy
}

func TestLootSuite(t *testing.T) {
	suite.Run(t, new(LootTestSuite))
}

func (s *LootTestSuite) SetupTest() {
	s.roster = []entities.Enemy{
		{ID: "enemy_1", Kind: "goblin", HP: 0, LootTable: "goblin"},
		{ID: "enemy_2", Kind: "goblin", HP: 0, LootTable: "goblin"},
		{ID: "enemy_3", Kind: "bandit", HP: -3, LootTable: "bandit"},
	}
}

func (s *LootTestSuite) TestSameSeedSameLoot() {
	for seed := int64(1); seed <= 20; seed++ {
		a, err := loot.NewEngine(dice.NewSeededRoller(seed)).RollLoot(s.roster)
		s.Require().NoError(err)
		b, err := loot.NewEngine(dice.NewSeededRoller(seed)).RollLoot(s.roster)
		s.Require().NoError(err)
		s.Equal(a, b, "seed %d", seed)
	}
}

func (s *LootTestSuite) TestEntriesRollIndependently() {
	table := loot.Table{
		ID:         "test",
		GoldChance: 100,
		GoldMin:    5,
		GoldMax:    5,
		Entries: []loot.Entry{
			{ItemID: "torch", Chance: 50, MinQty: 1, MaxQty: 1},
			{ItemID: "rope", Chance: 50, MinQty: 1, MaxQty: 1},
			{ItemID: "dagger", Chance: 50, MinQty: 1, MaxQty: 3},
		},
	}
	roster := []entities.Enemy{
		{ID: "enemy_1", HP: 0, LootTable: "test"},
		{ID: "enemy_2", HP: 0, LootTable: "test"},
	}

	// enemy_1: torch hit (50), rope miss (51), dagger hit (1) qty roll 3 -> 3
	// enemy_2: torch hit (10), rope hit (2), dagger miss (99)
	roller := dice.NewScriptedRoller(50, 51, 1, 3, 10, 2, 99)
	engine := loot.NewEngine(roller, table)

	result, err := engine.RollLoot(roster)
	s.Require().NoError(err)
	s.Equal(10, result.Gold)
	s.Equal([]entities.LootItem{
		{ItemID: "torch", Quantity: 2},
		{ItemID: "dagger", Quantity: 3},
		{ItemID: "rope", Quantity: 1},
	}, result.Items)
	s.Zero(roller.Remaining())
}

func (s *LootTestSuite) TestSkipsStandingEnemies() {
	roster := []entities.Enemy{{ID: "enemy_1", HP: 4, LootTable: "ogre"}}
	result, err := loot.NewEngine(dice.NewSeededRoller(7)).RollLoot(roster)
	s.Require().NoError(err)
	s.True(result.Empty())
}

func (s *LootTestSuite) TestUnknownTableFallsBack() {
	engine := loot.NewEngine(dice.NewSeededRoller(1))
	table, ok := engine.Table("dragon_hoard")
	s.Require().True(ok)
	s.Equal(loot.FallbackTable, table.ID)
}

func (s *LootTestSuite) TestGoldWithinRange() {
	table := loot.Table{ID: "t", GoldChance: 100, GoldMin: 3, GoldMax: 8}
	roster := []entities.Enemy{{ID: "enemy_1", HP: 0, LootTable: "t"}}
	for seed := int64(0); seed < 50; seed++ {
		result, err := loot.NewEngine(dice.NewSeededRoller(seed), table).RollLoot(roster)
		s.Require().NoError(err)
		s.GreaterOrEqual(result.Gold, 3)
		s.LessOrEqual(result.Gold, 8)
	}
}
