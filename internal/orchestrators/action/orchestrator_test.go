package action_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/clients/narrator"
	narratormock "github.com/KirkDiggler/rpg-narrator/internal/clients/narrator/mock"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/combat"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/commerce"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/dice"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/economy"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/intent"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/loot"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/action"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate"
	gamestatemock "github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate/mock"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
	budgetmock "github.com/KirkDiggler/rpg-narrator/internal/services/budget/mock"
)

const testTokens = 420

type OrchestratorTestSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	ctx           context.Context
	mockGameState *gamestatemock.MockRepository
	mockBudget    *budgetmock.MockService
	mockNarrator  *narratormock.MockClient
	clock         *clock.Fixed

	session     *entities.Session
	character   *entities.Character
	reservation *budget.Reservation
	usage       *budget.Usage

	saved    *gamestate.SaveInput
	narrated *narrator.NarrateInput
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = context.Background()
	s.mockGameState = gamestatemock.NewMockRepository(s.ctrl)
	s.mockBudget = budgetmock.NewMockService(s.ctrl)
	s.mockNarrator = narratormock.NewMockClient(s.ctrl)
	s.clock = clock.NewFixed(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	s.saved = nil
	s.narrated = nil

	s.character = &entities.Character{
		ID:        "char_1",
		UserID:    "user_1",
		Name:      "Brena",
		Class:     entities.ClassFighter,
		Level:     1,
		HP:        12,
		MaxHP:     12,
		Gold:      5,
		Abilities: entities.AbilityScores{Strength: 16, Dexterity: 14, Constitution: 14},
		Inventory: []entities.InventoryItem{
			{ItemID: "greataxe", Name: "Greataxe", Quantity: 1, Type: entities.ItemTypeWeapon},
			{ItemID: "torch", Name: "Torch", Quantity: 1, Type: entities.ItemTypeGear},
		},
	}
	s.session = &entities.Session{
		ID:          "sess_1",
		UserID:      "user_1",
		CharacterID: "char_1",
		Setting:     "a river town on the edge of a haunted forest",
		Location:    "Ashford market",
		Status:      entities.SessionStatusActive,
		Version:     3,
	}
	s.reservation = &budget.Reservation{SessionID: "sess_1", Day: "2026-05-01", Estimate: 2000}
	s.usage = &budget.Usage{Day: "2026-05-01", SessionUsed: 1000, SessionCeiling: 200000, GlobalUsed: 5000, GlobalCeiling: 5000000}
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *OrchestratorTestSuite) orchestrator(faces ...int) action.Service {
	return s.orchestratorWith(dice.NewScriptedRoller(faces...))
}

func (s *OrchestratorTestSuite) orchestratorWith(roller dice.Roller) action.Service {
	engine := dice.NewEngine(roller)
	items := catalog.Default()
	machine, err := combat.NewMachine(&combat.Config{
		Dice:     engine,
		Catalog:  items,
		Bestiary: catalog.DefaultBestiary(),
		Loot: loot.NewEngine(dice.NewSeededRoller(1), loot.Table{
			ID: "bandit", GoldChance: 100, GoldMin: 7, GoldMax: 7,
			Entries: []loot.Entry{{ItemID: "dagger", Chance: 100, MinQty: 1, MaxQty: 1}},
		}),
	})
	s.Require().NoError(err)

	o, err := action.NewOrchestrator(&action.Config{
		GameState:     s.mockGameState,
		Budget:        s.mockBudget,
		Narrator:      s.mockNarrator,
		Combat:        machine,
		Commerce:      commerce.NewEngine(items),
		Catalog:       items,
		Dice:          engine,
		Clock:         s.clock,
		HistoryWindow: 4,
		RetryInterval: time.Millisecond,
	})
	s.Require().NoError(err)
	return o
}

func (s *OrchestratorTestSuite) inCombat() {
	s.session.Combat = &entities.CombatState{
		Round:               1,
		Phase:               entities.PhasePlayerTurn,
		Transitions:         []entities.Phase{entities.PhaseCombatStart, entities.PhasePlayerTurn},
		PlayerWonInitiative: true,
		ValidTargets:        []string{"enemy_1"},
		Enemies: []entities.Enemy{{
			ID: "enemy_1", Name: "Bandit", Kind: "bandit",
			HP: 10, MaxHP: 10, AC: 12, AttackBonus: 4, Damage: "1d6+2", XP: 25, LootTable: "bandit",
		}},
	}
}

func (s *OrchestratorTestSuite) expectLoad() {
	s.mockGameState.EXPECT().
		Load(gomock.Any(), gamestate.LoadInput{SessionID: "sess_1", UserID: "user_1"}).
		Return(&gamestate.LoadOutput{Session: s.session.Clone(), Character: s.character.Clone()}, nil)
}

func (s *OrchestratorTestSuite) expectReserve() {
	s.mockBudget.EXPECT().
		CheckAndReserve(gomock.Any(), &budget.CheckAndReserveInput{SessionID: "sess_1"}).
		Return(&budget.CheckAndReserveOutput{Allowed: true, Reservation: s.reservation, Usage: s.usage}, nil)
}

func (s *OrchestratorTestSuite) expectCommit() {
	committed := *s.usage
	committed.SessionUsed += testTokens
	committed.GlobalUsed += testTokens
	s.mockBudget.EXPECT().
		Commit(gomock.Any(), &budget.CommitInput{Reservation: s.reservation, ActualTokens: testTokens}).
		Return(&budget.CommitOutput{Usage: &committed}, nil)
}

func (s *OrchestratorTestSuite) expectNarrate(reply string) {
	s.mockNarrator.EXPECT().
		Narrate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *narrator.NarrateInput) (*narrator.NarrateOutput, error) {
			s.narrated = in
			return &narrator.NarrateOutput{Text: reply, TotalTokens: testTokens}, nil
		})
}

func (s *OrchestratorTestSuite) expectSave() {
	s.mockGameState.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in gamestate.SaveInput) (*gamestate.SaveOutput, error) {
			s.saved = &in
			sess := in.Session.Clone()
			sess.Version++
			return &gamestate.SaveOutput{Session: sess, Character: in.Character.Clone()}, nil
		})
}

// expectTurn wires a full successful turn around reply
func (s *OrchestratorTestSuite) expectTurn(reply string) {
	s.expectLoad()
	s.expectReserve()
	s.expectNarrate(reply)
	s.expectCommit()
	s.expectSave()
}

func (s *OrchestratorTestSuite) lastPrompt() string {
	s.Require().NotNil(s.narrated)
	msgs := s.narrated.Messages
	s.Require().NotEmpty(msgs)
	return msgs[len(msgs)-1].Content
}

func (s *OrchestratorTestSuite) TestConfigValidation() {
	_, err := action.NewOrchestrator(&action.Config{})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestInputValidation() {
	o := s.orchestrator()

	_, err := o.ProcessAction(s.ctx, &action.ProcessActionInput{ActionText: "look around"})
	s.True(errors.IsInvalidArgument(err))

	_, err = o.ProcessAction(s.ctx, &action.ProcessActionInput{SessionID: "sess_1"})
	s.True(errors.IsInvalidArgument(err))

	_, err = o.ProcessAction(s.ctx, &action.ProcessActionInput{SessionID: "sess_1", ActionText: "I sell my torch"})
	s.True(errors.IsInvalidArgument(err))
	s.Contains(errors.GetMeta(err)["validation_errors"], "user_id")
}

func (s *OrchestratorTestSuite) TestAnotherUsersSessionIsNotFound() {
	s.mockGameState.EXPECT().
		Load(gomock.Any(), gamestate.LoadInput{SessionID: "sess_1", UserID: "user_2"}).
		Return(nil, errors.NotFoundf("session with ID %s not found", "sess_1"))

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_2",
		ActionText: "I sell my torch",
	})
	s.True(errors.IsNotFound(err))
}

func (s *OrchestratorTestSuite) TestBuyWithoutEnoughGoldChangesNothing() {
	s.expectTurn(`The smith names his price: ten gold for the sword.
<intents>{"commerce_buy":{"item":"sword","price":10}}</intents>`)

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I buy the sword",
	})
	s.Require().NoError(err)

	s.Equal(action.OutcomeOK, out.Outcome)
	s.Equal(intent.CategoryBuy, out.Category)
	s.Require().Len(out.Commerce, 1)
	s.Equal(action.CommerceBuy, out.Commerce[0].Kind)
	s.NotEmpty(out.Commerce[0].Error)
	s.Equal(5, out.Character.Gold)
	s.Equal(s.character.Inventory, out.Character.Inventory)
	s.Equal(0, out.Applied.GoldDelta)

	s.Require().NotNil(s.saved)
	s.Equal(5, s.saved.Character.Gold)
	s.Contains(s.lastPrompt(), "## Shop stock")
}

func (s *OrchestratorTestSuite) TestSellTorch() {
	s.expectTurn(`The merchant turns the torch over and flips you a copper-bright coin.
<intents>{"commerce_sell":{"item":"torch"},"remove_items":[{"item":"torch","qty":1}]}</intents>`)

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I sell my torch to the merchant",
	})
	s.Require().NoError(err)

	s.Equal(6, out.Character.Gold)
	s.Equal(0, out.Character.Quantity("torch"))
	s.Equal(1, out.Character.Quantity("greataxe"))
	s.Equal(1, out.Applied.GoldDelta)
	s.Equal([]entities.ItemDelta{{ItemID: "torch", Quantity: 1}}, out.Applied.ItemsRemoved)
	s.Require().Len(out.Commerce, 1)
	s.Equal(1, out.Commerce[0].Gold)
	s.Empty(out.Commerce[0].Error)
	s.Contains(s.lastPrompt(), "## Merchant offers")
}

func (s *OrchestratorTestSuite) TestBuyChargesCatalogPrice() {
	s.character.Gold = 20
	s.expectTurn(`"A fine blade, yours for eight."
<intents>{"commerce_buy":{"item":"sword","price":8}}</intents>`)

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I buy the sword",
	})
	s.Require().NoError(err)

	s.Equal(10, out.Character.Gold)
	s.Equal(1, out.Character.Quantity("sword"))
	s.Require().Len(out.Commerce, 1)
	s.True(out.Commerce[0].PriceMismatch)
	s.Equal(10, out.Commerce[0].Gold)
	s.Equal(-10, out.Applied.GoldDelta)
}

func (s *OrchestratorTestSuite) TestAttackKillsEnemyInOneHit() {
	s.inCombat()
	s.expectTurn("Your greataxe splits the bandit's guard and he falls.")

	// d20 15 +3 str +2 prof = 20 vs AC 12, greataxe 1d12 rolls 9 +3 = 12
	out, err := s.orchestrator(15, 9).ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:    "sess_1",
		UserID:       "user_1",
		CombatAction: &entities.CombatAction{Type: entities.ActionAttack, TargetID: "enemy_1"},
	})
	s.Require().NoError(err)

	s.Require().NotNil(out.Combat)
	s.Equal(entities.PhaseCombatEnd, out.Combat.Phase)
	s.Equal(entities.OutcomeVictory, out.Combat.Outcome)
	s.Empty(out.Combat.ValidTargets)
	s.Empty(out.Combat.AvailableActions)
	s.Equal(0, out.Combat.Enemies[0].HP)
	s.Len(out.Rolls, 2)
	s.Equal(25, out.Applied.XPDelta)
	s.Equal(25, out.Character.Experience)

	s.Require().NotNil(s.saved)
	s.Nil(s.saved.Session.Combat)
	s.Require().NotNil(s.saved.Session.PendingLoot)
	s.Equal(7, s.saved.Session.PendingLoot.Gold)
	s.Equal([]entities.LootItem{{ItemID: "dagger", Quantity: 1}}, s.saved.Session.PendingLoot.Items)

	// the narrator is told the resolved outcome, not asked for it
	prompt := s.lastPrompt()
	s.Contains(prompt, "## Combat")
	s.Contains(prompt, "attack enemy_1")
}

func (s *OrchestratorTestSuite) TestFreeTextAttackUsesTheOnlyTarget() {
	s.inCombat()
	s.expectTurn("The bandit crumples.")

	out, err := s.orchestrator(15, 9).ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I swing at him with everything I have",
	})
	s.Require().NoError(err)
	s.Equal(entities.OutcomeVictory, out.Combat.Outcome)
}

func (s *OrchestratorTestSuite) TestCombatRoundContinues() {
	s.inCombat()
	s.expectTurn("You miss; the bandit's blade finds your arm.\n<intents>{\"hp_delta\":-50,\"gold_delta\":30}</intents>")

	// miss: 5+5 = 10 vs 12; bandit 14+4 = 18 vs AC 12 hits for 3+2
	out, err := s.orchestrator(5, 14, 3).ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:    "sess_1",
		UserID:       "user_1",
		CombatAction: &entities.CombatAction{Type: entities.ActionAttack, TargetID: "enemy_1"},
	})
	s.Require().NoError(err)

	s.Equal(entities.PhasePlayerTurn, out.Combat.Phase)
	s.Equal(2, out.Combat.Round)
	s.Equal(7, out.Character.HP)
	s.Equal(5, out.Character.Gold)
	s.Contains(out.Combat.AvailableActions, entities.ActionAttack)
	s.Len(out.Rejections, 2)

	s.Require().NotNil(s.saved)
	s.Require().NotNil(s.saved.Session.Combat)
	s.Equal(entities.PhasePlayerTurn, s.saved.Session.Combat.Phase)
}

func (s *OrchestratorTestSuite) TestInvalidTargetIsRejectedBeforeAnythingElse() {
	s.inCombat()
	s.expectLoad()

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:    "sess_1",
		UserID:       "user_1",
		CombatAction: &entities.CombatAction{Type: entities.ActionAttack, TargetID: "enemy_9"},
	})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))
	s.Equal([]string{"enemy_1"}, errors.GetMeta(err)["valid_targets"])
}

func (s *OrchestratorTestSuite) TestUnclearCombatTextIsRejected() {
	s.inCombat()
	s.expectLoad()

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I recite a poem",
	})
	s.True(errors.IsInvalidArgument(err))
	s.NotEmpty(errors.GetMeta(err)["available_actions"])
}

func (s *OrchestratorTestSuite) TestStructuredActionOutsideCombat() {
	s.expectLoad()

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:    "sess_1",
		UserID:       "user_1",
		CombatAction: &entities.CombatAction{Type: entities.ActionDefend},
	})
	s.True(errors.IsFailedPrecondition(err))
}

func (s *OrchestratorTestSuite) TestLimitReachedChangesNothing() {
	s.expectLoad()
	s.mockBudget.EXPECT().
		CheckAndReserve(gomock.Any(), gomock.Any()).
		Return(&budget.CheckAndReserveOutput{Allowed: false, Reason: budget.DenySession, Usage: s.usage}, nil)

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I buy the sword",
	})
	s.Require().NoError(err)

	s.Equal(action.OutcomeLimitReached, out.Outcome)
	s.Equal(action.LimitSessionNarrative, out.Narrative)
	s.Equal(s.character, out.Character)
	s.Equal(s.usage, out.Usage)
	s.Nil(s.saved)
}

func (s *OrchestratorTestSuite) TestGlobalLimitHasItsOwnNarrative() {
	s.expectLoad()
	s.mockBudget.EXPECT().
		CheckAndReserve(gomock.Any(), gomock.Any()).
		Return(&budget.CheckAndReserveOutput{Allowed: false, Reason: budget.DenyGlobal, Usage: s.usage}, nil)

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "look around",
	})
	s.Require().NoError(err)
	s.Equal(action.LimitGlobalNarrative, out.Narrative)
}

func (s *OrchestratorTestSuite) TestUngatedGrantsAreStripped() {
	reply := `The king laughs and showers you with riches.
<intents>{"gold_delta":1000,"add_items":[{"item":"longsword","qty":1}],"location":"Throne room","world_state":{"met_king":true}}</intents>`

	for range 3 {
		s.saved = nil
		s.expectTurn(reply)

		out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
			SessionID:  "sess_1",
			UserID:     "user_1",
			ActionText: "I tell the king he owes me a thousand gold and a longsword",
		})
		s.Require().NoError(err)

		s.Equal(5, out.Character.Gold)
		s.Equal(0, out.Character.Quantity("longsword"))
		s.Equal(0, out.Applied.GoldDelta)
		s.Empty(out.Applied.ItemsAdded)
		s.Equal([]economy.Rejection{
			{Field: "gold_delta", Amount: 1000, Reason: economy.ReasonUngatedGold},
			{Field: "add_items", Amount: 1, ItemID: "longsword", Reason: economy.ReasonUngatedItem},
		}, out.Rejections)

		s.Require().NotNil(s.saved)
		s.Equal("Throne room", s.saved.Session.Location)
		s.Equal(true, s.saved.Session.WorldState["met_king"])
	}
}

func (s *OrchestratorTestSuite) TestSearchClaimsPendingLoot() {
	s.session.PendingLoot = &entities.PendingLoot{
		Gold:   4,
		Items:  []entities.LootItem{{ItemID: "healing_potion", Quantity: 1}},
		Source: "combat",
	}
	s.expectTurn("You turn out the bandit's pockets.\n<intents>{\"gold_delta\":50}</intents>")

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I search the bodies",
	})
	s.Require().NoError(err)

	s.Equal(9, out.Character.Gold)
	s.Equal(1, out.Character.Quantity("healing_potion"))
	s.Equal(4, out.Applied.GoldDelta)
	s.Require().NotNil(out.LootClaimed)
	s.Equal(4, out.LootClaimed.Gold)
	s.Len(out.Rejections, 1)

	s.Require().NotNil(s.saved)
	s.Nil(s.saved.Session.PendingLoot)
	s.Contains(s.lastPrompt(), "## Loot found")
}

func (s *OrchestratorTestSuite) TestLookingAroundDoesNotClaimLoot() {
	s.session.PendingLoot = &entities.PendingLoot{Gold: 4}
	s.expectTurn("Crows circle over the fallen.")

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I look around",
	})
	s.Require().NoError(err)

	s.Equal(5, out.Character.Gold)
	s.Nil(out.LootClaimed)
	s.Require().NotNil(s.saved)
	s.Equal(4, s.saved.Session.PendingLoot.Gold)
}

func (s *OrchestratorTestSuite) TestEncounterStartsCombatAndDiscardsLoot() {
	s.session.PendingLoot = &entities.PendingLoot{Gold: 4}
	s.expectTurn(`A goblin leaps from the brush!
<intents>{"encounter":{"enemies":[{"kind":"goblin"}]}}</intents>`)

	// goblin hp 2d6 = 3+4, player initiative 12+2 vs goblin 5+2
	out, err := s.orchestrator(3, 4, 12, 5).ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I push deeper into the forest",
	})
	s.Require().NoError(err)

	s.Require().NotNil(out.Combat)
	s.Equal(entities.PhasePlayerTurn, out.Combat.Phase)
	s.Equal([]string{"enemy_1"}, out.Combat.ValidTargets)
	s.Equal(7, out.Combat.Enemies[0].HP)
	s.Len(out.Rolls, 3)

	s.Require().NotNil(s.saved)
	s.Nil(s.saved.Session.PendingLoot)
	s.Require().NotNil(s.saved.Session.Combat)
	s.True(s.saved.Session.Combat.PlayerWonInitiative)
}

func (s *OrchestratorTestSuite) TestLethalDamageEndsTheSession() {
	s.expectTurn("The floor gives way beneath you.\n<intents>{\"hp_delta\":-40}</intents>")

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I step onto the cracked flagstones",
	})
	s.Require().NoError(err)

	s.Equal(0, out.Character.HP)
	s.Equal(-12, out.Applied.HPDelta)
	s.True(out.CharacterDead)
	s.True(out.SessionEnded)
	s.Equal(entities.SessionStatusEnded, s.saved.Session.Status)
}

func (s *OrchestratorTestSuite) TestHealingIsClampedToMax() {
	s.character.HP = 10
	s.expectTurn("You rest by the fire.\n<intents>{\"hp_delta\":8}</intents>")

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I rest by the fire",
	})
	s.Require().NoError(err)
	s.Equal(12, out.Character.HP)
	s.Equal(2, out.Applied.HPDelta)
}

func (s *OrchestratorTestSuite) TestOverflowingHealIsIgnored() {
	s.character.HP = 10
	s.expectTurn("Light pours into you.\n<intents>{\"hp_delta\":9223372036854775807}</intents>")

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I pray at the shrine",
	})
	s.Require().NoError(err)

	s.Equal(intent.StatusMalformed, out.IntentStatus)
	s.Equal(10, out.Character.HP)
	s.Zero(out.Applied.HPDelta)
	s.False(out.CharacterDead)
	s.False(out.SessionEnded)
	s.Require().NotNil(s.saved)
	s.Equal(entities.SessionStatusActive, s.saved.Session.Status)
}

func (s *OrchestratorTestSuite) TestLargestHealIsClamped() {
	s.character.HP = 1
	s.expectTurn(fmt.Sprintf("Light pours into you.\n<intents>{\"hp_delta\":%d,\"xp_delta\":%d}</intents>", intent.MaxDelta, intent.MaxDelta))

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I pray at the shrine",
	})
	s.Require().NoError(err)

	s.Equal(intent.StatusOK, out.IntentStatus)
	s.Equal(out.Character.MaxHP, out.Character.HP)
	s.Equal(intent.MaxDelta, out.Character.Experience)
	s.Equal(intent.MaxDelta, out.Applied.XPDelta)
	s.False(out.CharacterDead)
}

func (s *OrchestratorTestSuite) TestExperienceLossIsRejected() {
	s.character.Experience = 250
	s.expectTurn("The curse saps your memories.\n<intents>{\"xp_delta\":-200}</intents>")

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I read the cursed tome",
	})
	s.Require().NoError(err)

	s.Equal(250, out.Character.Experience)
	s.Zero(out.Applied.XPDelta)
	s.Equal([]economy.Rejection{
		{Field: "xp_delta", Amount: -200, Reason: economy.ReasonExperienceLoss},
	}, out.Rejections)
}

func (s *OrchestratorTestSuite) TestChecksAreRolledByTheServer() {
	s.expectTurn(`You reach for the ledge.
<intents>{"checks":[{"label":"climb","notation":"1d20+2","dc":12}]}</intents>`)

	out, err := s.orchestrator(15).ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I climb the wall",
	})
	s.Require().NoError(err)

	s.Require().Len(out.Rolls, 1)
	s.Equal("climb", out.Rolls[0].Label)
	s.Equal(17, out.Rolls[0].Total)
	s.True(out.Rolls[0].Success)
}

func (s *OrchestratorTestSuite) TestMalformedIntentsDegradeToNarrative() {
	s.expectTurn("The wind howls.\n<intents>{\"gold_delta\": lots}</intents>")

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I wait",
	})
	s.Require().NoError(err)

	s.Equal(intent.StatusMalformed, out.IntentStatus)
	s.Equal("The wind howls.", out.Narrative)
	s.Equal(5, out.Character.Gold)
	s.Empty(out.Rejections)
}

func (s *OrchestratorTestSuite) TestHistoryIsWindowed() {
	s.session.History = []entities.Message{
		{Role: entities.RolePlayer, Content: "one"},
		{Role: entities.RoleNarrator, Content: "two"},
		{Role: entities.RolePlayer, Content: "three"},
		{Role: entities.RoleNarrator, Content: "four"},
	}
	s.expectTurn("The road bends north.")

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I follow the road",
	})
	s.Require().NoError(err)

	s.Require().NotNil(s.saved)
	history := s.saved.Session.History
	s.Require().Len(history, 4)
	s.Equal("three", history[0].Content)
	s.Equal("I follow the road", history[2].Content)
	s.Equal("The road bends north.", history[3].Content)
	s.Equal(s.clock.Now().Unix(), history[3].At)
}

func (s *OrchestratorTestSuite) TestNarratorRetriedOnce() {
	s.expectLoad()
	s.expectReserve()
	gomock.InOrder(
		s.mockNarrator.EXPECT().Narrate(gomock.Any(), gomock.Any()).
			Return(nil, errors.Unavailable("provider overloaded")),
		s.mockNarrator.EXPECT().Narrate(gomock.Any(), gomock.Any()).
			Return(&narrator.NarrateOutput{Text: "The gate creaks open.", TotalTokens: testTokens}, nil),
	)
	s.expectCommit()
	s.expectSave()

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I open the gate",
	})
	s.Require().NoError(err)
	s.Equal("The gate creaks open.", out.Narrative)
	s.Equal(s.usage.SessionUsed+testTokens, out.Usage.SessionUsed)
}

func (s *OrchestratorTestSuite) TestNarratorFailureReleasesReservation() {
	s.expectLoad()
	s.expectReserve()
	s.mockNarrator.EXPECT().Narrate(gomock.Any(), gomock.Any()).
		Return(nil, errors.Unavailable("provider overloaded")).
		Times(2)
	s.mockBudget.EXPECT().
		Release(gomock.Any(), &budget.ReleaseInput{Reservation: s.reservation}).
		Return(nil)

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I open the gate",
	})
	s.Require().Error(err)
	s.True(errors.IsUnavailable(err))
	s.True(errors.IsRetryable(err))
	s.Nil(s.saved)
}

func (s *OrchestratorTestSuite) TestPermanentNarratorErrorIsNotRetried() {
	s.expectLoad()
	s.expectReserve()
	s.mockNarrator.EXPECT().Narrate(gomock.Any(), gomock.Any()).
		Return(nil, errors.Internal("bad request")).
		Times(1)
	s.mockBudget.EXPECT().Release(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I open the gate",
	})
	s.True(errors.IsUnavailable(err))
}

func (s *OrchestratorTestSuite) TestPersistenceFailureIsReturned() {
	s.expectLoad()
	s.expectReserve()
	s.expectNarrate("You sell the torch.\n<intents>{\"commerce_sell\":{\"item\":\"torch\"}}</intents>")
	s.expectCommit()
	s.mockGameState.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		Return(nil, errors.Aborted("session was modified concurrently, retry the action"))

	out, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I sell my torch",
	})
	s.Nil(out)
	s.True(errors.IsAborted(err))
}

func (s *OrchestratorTestSuite) TestEndedSessionRejectsActions() {
	s.session.Status = entities.SessionStatusEnded
	s.expectLoad()

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I look around",
	})
	s.True(errors.IsFailedPrecondition(err))
}

func (s *OrchestratorTestSuite) TestSystemPromptCarriesSetting() {
	s.expectTurn("Mist rolls off the river.")

	_, err := s.orchestrator().ProcessAction(s.ctx, &action.ProcessActionInput{
		SessionID:  "sess_1",
		UserID:     "user_1",
		ActionText: "I look around",
	})
	s.Require().NoError(err)
	s.True(strings.Contains(s.narrated.System, s.session.Setting))
}

// randomIntent builds a narrator intents block from rng, leaning on extreme
// and hostile values
func randomIntent(rng *rand.Rand) string {
	deltas := []int{0, 0, 3, -4, 25, -60, intent.MaxDelta, -intent.MaxDelta, math.MaxInt, math.MinInt}
	items := []string{"torch", "greataxe", "sword", "rope", "healing_potion", "dagger", "crown_jewels"}
	qtys := []int{1, 2, intent.MaxQuantity, math.MaxInt, -1}
	pick := func(xs []int) int { return xs[rng.Intn(len(xs))] }
	item := func() string { return items[rng.Intn(len(items))] }

	in := map[string]any{}
	if rng.Intn(2) == 0 {
		in["hp_delta"] = pick(deltas)
	}
	if rng.Intn(2) == 0 {
		in["gold_delta"] = pick(deltas)
	}
	if rng.Intn(3) == 0 {
		in["xp_delta"] = pick(deltas)
	}
	if rng.Intn(3) == 0 {
		in["add_items"] = []map[string]any{{"item": item(), "qty": pick(qtys)}}
	}
	if rng.Intn(3) == 0 {
		in["remove_items"] = []map[string]any{{"item": item(), "qty": pick(qtys)}}
	}
	if rng.Intn(4) == 0 {
		in["commerce_sell"] = map[string]any{"item": item()}
	}
	if rng.Intn(4) == 0 {
		in["commerce_buy"] = map[string]any{"item": item(), "price": pick(qtys)}
	}
	if rng.Intn(6) == 0 {
		in["encounter"] = map[string]any{"enemies": []map[string]any{{"kind": "goblin", "count": 1 + rng.Intn(2)}}}
	}

	body, _ := json.Marshal(in)
	return fmt.Sprintf("Something happens.\n<intents>%s</intents>", body)
}

// TestRandomTurnsKeepCharacterValid plays seeded turns against hostile
// narrator output and checks every persisted record
func (s *OrchestratorTestSuite) TestRandomTurnsKeepCharacterValid() {
	rng := rand.New(rand.NewSource(7))
	o := s.orchestratorWith(dice.NewSeededRoller(7))
	freshSession := s.session.Clone()
	freshCharacter := s.character.Clone()
	texts := []string{"I look around", "I sell my torch", "I buy a rope", "I search the bodies", "I rest a while"}

	for turn := range 200 {
		s.saved = nil
		s.expectTurn(randomIntent(rng))

		input := &action.ProcessActionInput{SessionID: "sess_1", UserID: "user_1"}
		if fight := s.session.Combat; fight != nil {
			input.CombatAction = &entities.CombatAction{Type: entities.ActionDefend}
			if rng.Intn(3) > 0 && len(fight.ValidTargets) > 0 {
				input.CombatAction = &entities.CombatAction{Type: entities.ActionAttack, TargetID: fight.ValidTargets[0]}
			}
		} else {
			input.ActionText = texts[rng.Intn(len(texts))]
		}

		_, err := o.ProcessAction(s.ctx, input)
		s.Require().NoError(err, "turn %d", turn)
		s.Require().NotNil(s.saved, "turn %d", turn)

		c := s.saved.Character
		s.GreaterOrEqual(c.HP, 0, "turn %d", turn)
		s.LessOrEqual(c.HP, c.MaxHP, "turn %d", turn)
		s.GreaterOrEqual(c.Gold, 0, "turn %d", turn)
		s.GreaterOrEqual(c.Experience, 0, "turn %d", turn)
		s.LessOrEqual(c.Level, 10, "turn %d", turn)
		for _, stack := range c.Inventory {
			s.Positive(stack.Quantity, "turn %d item %s", turn, stack.ItemID)
		}
		s.Equal(c.HP == 0, c.Dead, "turn %d", turn)

		s.session = s.saved.Session.Clone()
		s.character = c.Clone()
		if s.session.Status == entities.SessionStatusEnded {
			s.session = freshSession.Clone()
			s.character = freshCharacter.Clone()
		}
	}
}
