package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/session"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/idgen"
	characterrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/character"
	charactermock "github.com/KirkDiggler/rpg-narrator/internal/repositories/character/mock"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate"
	gamestatemock "github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate/mock"
	sessionrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/session"
	sessionrepomock "github.com/KirkDiggler/rpg-narrator/internal/repositories/session/mock"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
	budgetmock "github.com/KirkDiggler/rpg-narrator/internal/services/budget/mock"
)

type OrchestratorTestSuite struct {
	suite.Suite
	ctrl              *gomock.Controller
	ctx               context.Context
	mockCharacterRepo *charactermock.MockRepository
	mockSessionRepo   *sessionrepomock.MockRepository
	mockGameState     *gamestatemock.MockRepository
	mockBudget        *budgetmock.MockService
	orchestrator      session.Service

	stored *entities.Session
	hero   *entities.Character
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = context.Background()
	s.mockCharacterRepo = charactermock.NewMockRepository(s.ctrl)
	s.mockSessionRepo = sessionrepomock.NewMockRepository(s.ctrl)
	s.mockGameState = gamestatemock.NewMockRepository(s.ctrl)
	s.mockBudget = budgetmock.NewMockService(s.ctrl)

	var err error
	s.orchestrator, err = session.NewOrchestrator(&session.Config{
		CharacterRepo:      s.mockCharacterRepo,
		SessionRepo:        s.mockSessionRepo,
		GameState:          s.mockGameState,
		Budget:             s.mockBudget,
		Catalog:            catalog.Default(),
		CharacterIDs:       idgen.NewSequential("char"),
		SessionIDs:         idgen.NewSequential("sess"),
		MaxSessionsPerUser: 2,
		StartingGold:       15,
	})
	s.Require().NoError(err)

	s.stored = &entities.Session{
		ID:          "sess_1",
		UserID:      "user_1",
		CharacterID: "char_1",
		Status:      entities.SessionStatusActive,
		Version:     4,
	}
	s.hero = &entities.Character{ID: "char_1", UserID: "user_1", Name: "Brena", Class: entities.ClassFighter, Level: 1, HP: 12, MaxHP: 12}
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *OrchestratorTestSuite) expectActive(ids ...string) {
	s.mockSessionRepo.EXPECT().
		ListActive(gomock.Any(), sessionrepo.ListActiveInput{UserID: "user_1"}).
		Return(&sessionrepo.ListActiveOutput{SessionIDs: ids}, nil)
}

func (s *OrchestratorTestSuite) TestConfigValidation() {
	_, err := session.NewOrchestrator(&session.Config{})
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestStartSessionBuildsClassDefaults() {
	s.expectActive()

	var created *entities.Character
	s.mockCharacterRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in characterrepo.CreateInput) (*characterrepo.CreateOutput, error) {
			created = in.Character
			return &characterrepo.CreateOutput{Character: in.Character}, nil
		})
	s.mockSessionRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessionrepo.CreateInput) (*sessionrepo.CreateOutput, error) {
			s.Equal(2, in.MaxActive)
			stored := *in.Session
			stored.Version = 1
			return &sessionrepo.CreateOutput{Session: &stored}, nil
		})

	out, err := s.orchestrator.StartSession(s.ctx, &session.StartSessionInput{
		UserID:        "user_1",
		CharacterName: "  Brena ",
		Class:         entities.ClassFighter,
		Setting:       "a river town",
		Options:       entities.GameOptions{GoreLevel: "mild", ConfirmCombat: true},
	})
	s.Require().NoError(err)
	s.Require().NotNil(created)

	c := out.Character
	s.Equal("Brena", c.Name)
	s.Equal(1, c.Level)
	// d10 hit die + CON 14
	s.Equal(12, c.HP)
	s.Equal(12, c.MaxHP)
	s.Equal(15, c.Gold)
	s.Equal(15, c.Abilities.Strength)
	s.Equal(1, c.Quantity("longsword"))
	s.Equal(3, c.Quantity("rations"))
	i := c.FindItem("shield")
	s.Require().GreaterOrEqual(i, 0)
	s.Equal(entities.ItemTypeArmor, c.Inventory[i].Type)

	s.Equal(c.ID, out.Session.CharacterID)
	s.Equal("user_1", out.Session.UserID)
	s.Equal(entities.SessionStatusActive, out.Session.Status)
	s.True(out.Session.Options.ConfirmCombat)
	s.Equal(int64(1), out.Session.Version)
}

func (s *OrchestratorTestSuite) TestStartSessionUsesChosenAbilities() {
	s.expectActive("sess_old")
	s.mockCharacterRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in characterrepo.CreateInput) (*characterrepo.CreateOutput, error) {
			return &characterrepo.CreateOutput{Character: in.Character}, nil
		})
	s.mockSessionRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in sessionrepo.CreateInput) (*sessionrepo.CreateOutput, error) {
			return &sessionrepo.CreateOutput{Session: in.Session}, nil
		})

	out, err := s.orchestrator.StartSession(s.ctx, &session.StartSessionInput{
		UserID:        "user_1",
		CharacterName: "Quill",
		Class:         entities.ClassWizard,
		Abilities:     &entities.AbilityScores{Strength: 8, Dexterity: 12, Constitution: 8, Intelligence: 18, Wisdom: 10, Charisma: 10},
	})
	s.Require().NoError(err)

	// d6 - 1, never below one
	s.Equal(5, out.Character.MaxHP)
	s.Equal(18, out.Character.Abilities.Intelligence)
	s.Equal(1, out.Character.Quantity("spellbook"))
}

func (s *OrchestratorTestSuite) TestStartSessionValidation() {
	testCases := []struct {
		name  string
		input *session.StartSessionInput
		field string
	}{
		{
			name:  "missing user",
			input: &session.StartSessionInput{CharacterName: "A", Class: entities.ClassRogue},
			field: "user_id",
		},
		{
			name:  "blank name",
			input: &session.StartSessionInput{UserID: "user_1", CharacterName: "   ", Class: entities.ClassRogue},
			field: "character_name",
		},
		{
			name:  "unknown class",
			input: &session.StartSessionInput{UserID: "user_1", CharacterName: "A", Class: "bard"},
			field: "class",
		},
		{
			name: "bad gore level",
			input: &session.StartSessionInput{UserID: "user_1", CharacterName: "A", Class: entities.ClassRogue,
				Options: entities.GameOptions{GoreLevel: "extreme"}},
			field: "options.gore_level",
		},
		{
			name: "ability out of range",
			input: &session.StartSessionInput{UserID: "user_1", CharacterName: "A", Class: entities.ClassRogue,
				Abilities: &entities.AbilityScores{Strength: 30, Dexterity: 10, Constitution: 10, Intelligence: 10, Wisdom: 10, Charisma: 10}},
			field: "abilities.str",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.orchestrator.StartSession(s.ctx, tc.input)
			s.Require().Error(err)
			s.True(errors.IsInvalidArgument(err))
			fields, ok := errors.GetMeta(err)["validation_errors"].(map[string]any)
			s.Require().True(ok)
			s.Contains(fields, tc.field)
		})
	}
}

func (s *OrchestratorTestSuite) TestStartSessionAtLimit() {
	s.expectActive("sess_a", "sess_b")

	_, err := s.orchestrator.StartSession(s.ctx, &session.StartSessionInput{
		UserID:        "user_1",
		CharacterName: "Brena",
		Class:         entities.ClassFighter,
	})
	s.Require().Error(err)
	s.True(errors.IsResourceExhausted(err))
	s.Equal(2, errors.GetMeta(err)["max_active"])
}

func (s *OrchestratorTestSuite) TestStartSessionRemovesCharacterWhenSessionFails() {
	s.expectActive("sess_a")
	s.mockCharacterRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in characterrepo.CreateInput) (*characterrepo.CreateOutput, error) {
			return &characterrepo.CreateOutput{Character: in.Character}, nil
		})
	s.mockSessionRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(nil, errors.ResourceExhaustedf("user_1 already has 2 active sessions"))
	s.mockCharacterRepo.EXPECT().
		Delete(gomock.Any(), characterrepo.DeleteInput{ID: "char_1"}).
		Return(&characterrepo.DeleteOutput{}, nil)

	_, err := s.orchestrator.StartSession(s.ctx, &session.StartSessionInput{
		UserID:        "user_1",
		CharacterName: "Brena",
		Class:         entities.ClassFighter,
	})
	s.True(errors.IsResourceExhausted(err))
}

func (s *OrchestratorTestSuite) TestGetSession() {
	s.mockGameState.EXPECT().
		Load(gomock.Any(), gamestate.LoadInput{SessionID: "sess_1", UserID: "user_1"}).
		Return(&gamestate.LoadOutput{Session: s.stored, Character: s.hero}, nil)
	usage := &budget.Usage{Day: "2026-05-01", SessionUsed: 900, SessionCeiling: 200000}
	s.mockBudget.EXPECT().
		Usage(gomock.Any(), &budget.UsageInput{SessionID: "sess_1"}).
		Return(&budget.UsageOutput{Usage: usage}, nil)

	out, err := s.orchestrator.GetSession(s.ctx, &session.GetSessionInput{SessionID: "sess_1", UserID: "user_1"})
	s.Require().NoError(err)
	s.Equal(s.stored, out.Session)
	s.Equal(s.hero, out.Character)
	s.Equal(usage, out.Usage)
}

func (s *OrchestratorTestSuite) TestGetSessionSurvivesUsageFailure() {
	s.mockGameState.EXPECT().
		Load(gomock.Any(), gomock.Any()).
		Return(&gamestate.LoadOutput{Session: s.stored, Character: s.hero}, nil)
	s.mockBudget.EXPECT().
		Usage(gomock.Any(), gomock.Any()).
		Return(nil, errors.Unavailable("redis down"))

	out, err := s.orchestrator.GetSession(s.ctx, &session.GetSessionInput{SessionID: "sess_1", UserID: "user_1"})
	s.Require().NoError(err)
	s.Nil(out.Usage)
}

func (s *OrchestratorTestSuite) TestGetSessionOfAnotherUserIsNotFound() {
	s.mockGameState.EXPECT().
		Load(gomock.Any(), gamestate.LoadInput{SessionID: "sess_1", UserID: "user_2"}).
		Return(nil, errors.NotFoundf("session with ID %s not found", "sess_1"))

	_, err := s.orchestrator.GetSession(s.ctx, &session.GetSessionInput{SessionID: "sess_1", UserID: "user_2"})
	s.True(errors.IsNotFound(err))
}

func (s *OrchestratorTestSuite) TestSessionReadsRequireUser() {
	_, err := s.orchestrator.GetSession(s.ctx, &session.GetSessionInput{SessionID: "sess_1"})
	s.True(errors.IsInvalidArgument(err))
	s.Contains(errors.GetMeta(err)["validation_errors"], "user_id")

	_, err = s.orchestrator.EndSession(s.ctx, &session.EndSessionInput{SessionID: "sess_1"})
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestEndSession() {
	s.mockGameState.EXPECT().
		Load(gomock.Any(), gamestate.LoadInput{SessionID: "sess_1", UserID: "user_1"}).
		Return(&gamestate.LoadOutput{Session: s.stored, Character: s.hero}, nil)
	s.mockGameState.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in gamestate.SaveInput) (*gamestate.SaveOutput, error) {
			s.Equal(entities.SessionStatusEnded, in.Session.Status)
			s.Equal(int64(4), in.Session.Version)
			ended := *in.Session
			ended.Version++
			return &gamestate.SaveOutput{Session: &ended, Character: in.Character}, nil
		})

	out, err := s.orchestrator.EndSession(s.ctx, &session.EndSessionInput{SessionID: "sess_1", UserID: "user_1"})
	s.Require().NoError(err)
	s.Equal(entities.SessionStatusEnded, out.Session.Status)
	s.Equal(int64(5), out.Session.Version)
}

func (s *OrchestratorTestSuite) TestEndSessionIsIdempotent() {
	s.stored.Status = entities.SessionStatusEnded
	s.mockGameState.EXPECT().
		Load(gomock.Any(), gomock.Any()).
		Return(&gamestate.LoadOutput{Session: s.stored, Character: s.hero}, nil)

	out, err := s.orchestrator.EndSession(s.ctx, &session.EndSessionInput{SessionID: "sess_1", UserID: "user_1"})
	s.Require().NoError(err)
	s.Equal(entities.SessionStatusEnded, out.Session.Status)
}

func (s *OrchestratorTestSuite) TestEndSessionRequiresID() {
	_, err := s.orchestrator.EndSession(s.ctx, &session.EndSessionInput{})
	s.True(errors.IsInvalidArgument(err))
}
