// Package session implements the session lifecycle: starting a new
// adventure, reading it back and ending it.
package session

//go:generate mockgen -destination=mock/mock_service.go -package=sessionmock github.com/KirkDiggler/rpg-narrator/internal/orchestrators/session Service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/idgen"
	characterrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/character"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate"
	sessionrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/session"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
)

const (
	maxNameLength    = 64
	maxSettingLength = 500
	minAbilityScore  = 3
	maxAbilityScore  = 18
)

// ContentLevels are the accepted gore and mature-theme settings. Empty uses
// the narrator default.
var ContentLevels = []string{"none", "mild", "moderate", "graphic"}

// Service manages sessions
type Service interface {
	StartSession(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error)
	GetSession(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error)
	// EndSession is idempotent; ending an ended session returns it unchanged
	EndSession(ctx context.Context, input *EndSessionInput) (*EndSessionOutput, error)
}

// Config holds the dependencies for the session orchestrator
type Config struct {
	CharacterRepo characterrepo.Repository
	SessionRepo   sessionrepo.Repository
	GameState     gamestate.Repository
	Budget        budget.Service
	Catalog       *catalog.Catalog
	CharacterIDs  idgen.Generator
	SessionIDs    idgen.Generator
	Clock         clock.Clock

	MaxSessionsPerUser int
	StartingGold       int
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.CharacterRepo == nil {
		vb.RequiredField("CharacterRepo")
	}
	if c.SessionRepo == nil {
		vb.RequiredField("SessionRepo")
	}
	if c.GameState == nil {
		vb.RequiredField("GameState")
	}
	if c.Budget == nil {
		vb.RequiredField("Budget")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.CharacterIDs == nil {
		vb.RequiredField("CharacterIDs")
	}
	if c.SessionIDs == nil {
		vb.RequiredField("SessionIDs")
	}
	errors.ValidatePositive("MaxSessionsPerUser", int64(c.MaxSessionsPerUser), vb)
	if c.StartingGold < 0 {
		vb.Field("StartingGold", "must not be negative")
	}

	return vb.Build()
}

type orchestrator struct {
	characters   characterrepo.Repository
	sessions     sessionrepo.Repository
	gameState    gamestate.Repository
	budget       budget.Service
	catalog      *catalog.Catalog
	characterIDs idgen.Generator
	sessionIDs   idgen.Generator
	clock        clock.Clock

	maxSessions  int
	startingGold int
}

// NewOrchestrator creates a new session orchestrator with the provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &orchestrator{
		characters:   cfg.CharacterRepo,
		sessions:     cfg.SessionRepo,
		gameState:    cfg.GameState,
		budget:       cfg.Budget,
		catalog:      cfg.Catalog,
		characterIDs: cfg.CharacterIDs,
		sessionIDs:   cfg.SessionIDs,
		clock:        c,
		maxSessions:  cfg.MaxSessionsPerUser,
		startingGold: cfg.StartingGold,
	}, nil
}

func (o *orchestrator) StartSession(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := validateStart(input); err != nil {
		return nil, err
	}

	// Cheap pre-check; the session repository enforces the limit atomically
	active, err := o.sessions.ListActive(ctx, sessionrepo.ListActiveInput{UserID: input.UserID})
	if err != nil {
		return nil, err
	}
	if len(active.SessionIDs) >= o.maxSessions {
		return nil, errors.ResourceExhaustedf("user already has %d active sessions", len(active.SessionIDs)).
			WithMeta("max_active", o.maxSessions)
	}

	char, err := o.newCharacter(input)
	if err != nil {
		return nil, err
	}
	created, err := o.characters.Create(ctx, characterrepo.CreateInput{Character: char})
	if err != nil {
		return nil, err
	}

	sess := &entities.Session{
		ID:          o.sessionIDs.Generate(),
		UserID:      input.UserID,
		CharacterID: created.Character.ID,
		Setting:     strings.TrimSpace(input.Setting),
		Options:     input.Options,
		Status:      entities.SessionStatusActive,
	}
	stored, err := o.sessions.Create(ctx, sessionrepo.CreateInput{Session: sess, MaxActive: o.maxSessions})
	if err != nil {
		if _, delErr := o.characters.Delete(ctx, characterrepo.DeleteInput{ID: created.Character.ID}); delErr != nil {
			slog.ErrorContext(ctx, "failed to remove character after session create failed",
				"character_id", created.Character.ID,
				"error", delErr)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "session started",
		"session_id", stored.Session.ID,
		"user_id", input.UserID,
		"character_id", created.Character.ID,
		"class", created.Character.Class)

	return &StartSessionOutput{Session: stored.Session, Character: created.Character}, nil
}

func validateStart(input *StartSessionInput) error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("user_id", input.UserID, vb)
	name := strings.TrimSpace(input.CharacterName)
	errors.ValidateRequired("character_name", name, vb)
	if len(name) > maxNameLength {
		vb.Fieldf("character_name", "must be at most %d characters", maxNameLength)
	}
	if !input.Class.Valid() {
		vb.Fieldf("class", "unknown class %q", input.Class)
	}
	if len(input.Setting) > maxSettingLength {
		vb.Fieldf("setting", "must be at most %d characters", maxSettingLength)
	}
	if input.Options.GoreLevel != "" {
		errors.ValidateEnum("options.gore_level", input.Options.GoreLevel, ContentLevels, vb)
	}
	if input.Options.MatureLevel != "" {
		errors.ValidateEnum("options.mature_level", input.Options.MatureLevel, ContentLevels, vb)
	}
	if a := input.Abilities; a != nil {
		for field, score := range map[string]int{
			"abilities.str": a.Strength, "abilities.dex": a.Dexterity, "abilities.con": a.Constitution,
			"abilities.int": a.Intelligence, "abilities.wis": a.Wisdom, "abilities.cha": a.Charisma,
		} {
			if score < minAbilityScore || score > maxAbilityScore {
				vb.Fieldf(field, "must be between %d and %d", minAbilityScore, maxAbilityScore)
			}
		}
	}
	return vb.Build()
}

func (o *orchestrator) newCharacter(input *StartSessionInput) (*entities.Character, error) {
	tmpl := classTemplates[input.Class]
	abilities := tmpl.abilities
	if input.Abilities != nil {
		abilities = *input.Abilities
	}

	hp := startingHP(input.Class, abilities.Constitution)
	char := &entities.Character{
		ID:        o.characterIDs.Generate(),
		UserID:    input.UserID,
		Name:      strings.TrimSpace(input.CharacterName),
		Class:     input.Class,
		Level:     1,
		HP:        hp,
		MaxHP:     hp,
		Gold:      o.startingGold,
		Abilities: abilities,
	}
	for _, k := range tmpl.kit {
		stack, err := o.catalog.Stack(k.id, k.qty)
		if err != nil {
			return nil, errors.Wrapf(err, "starting kit for %s", input.Class)
		}
		char.AddItem(stack)
	}
	char.Normalize()
	return char, nil
}

func (o *orchestrator) GetSession(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
	loaded, err := o.load(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &GetSessionOutput{Session: loaded.Session, Character: loaded.Character}
	usage, err := o.budget.Usage(ctx, &budget.UsageInput{SessionID: loaded.Session.ID})
	if err != nil {
		slog.WarnContext(ctx, "failed to read token usage",
			"session_id", loaded.Session.ID,
			"error", err)
	} else {
		out.Usage = usage.Usage
	}
	return out, nil
}

func (o *orchestrator) EndSession(ctx context.Context, input *EndSessionInput) (*EndSessionOutput, error) {
	loaded, err := o.load(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if loaded.Session.Status == entities.SessionStatusEnded {
		return &EndSessionOutput{Session: loaded.Session}, nil
	}

	loaded.Session.Status = entities.SessionStatusEnded
	saved, err := o.gameState.Save(ctx, gamestate.SaveInput{Session: loaded.Session, Character: loaded.Character})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "session ended",
		"session_id", saved.Session.ID,
		"user_id", saved.Session.UserID)
	return &EndSessionOutput{Session: saved.Session}, nil
}

func (o *orchestrator) load(ctx context.Context, sessionID, userID string) (*gamestate.LoadOutput, error) {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("session_id", sessionID, vb)
	errors.ValidateRequired("user_id", userID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}
	return o.gameState.Load(ctx, gamestate.LoadInput{SessionID: sessionID, UserID: userID})
}
