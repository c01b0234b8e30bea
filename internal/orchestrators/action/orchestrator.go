// Package action runs one player turn: budget, combat, narration, guard,
// commerce and a single atomic write of the character and session.
package action

//go:generate mockgen -destination=mock/mock_service.go -package=actionmock github.com/KirkDiggler/rpg-narrator/internal/orchestrators/action Service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/KirkDiggler/rpg-narrator/internal/catalog"
	"github.com/KirkDiggler/rpg-narrator/internal/clients/narrator"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/combat"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/commerce"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/dice"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/economy"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/intent"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-narrator/internal/prompts"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
)

const (
	defaultHistoryWindow    = 20
	defaultCombatLogEntries = 5
	defaultRetryInterval    = 500 * time.Millisecond

	// narrator attempts per turn, including the first
	narratorAttempts = 2
)

// Player-facing text for turns the narrator never saw
const (
	LimitSessionNarrative = "Your story pauses here for today. This adventure has used its daily allowance; return tomorrow to continue."
	LimitGlobalNarrative  = "The realm grows quiet. The narrator is resting after a busy day; please return tomorrow."
)

// Service processes player actions
type Service interface {
	// ProcessAction resolves one turn and persists the result
	ProcessAction(ctx context.Context, input *ProcessActionInput) (*ProcessActionOutput, error)
}

// Config holds the dependencies for the action orchestrator
type Config struct {
	GameState gamestate.Repository
	Budget    budget.Service
	Narrator  narrator.Client
	Combat    *combat.Machine
	Commerce  *commerce.Engine
	Catalog   *catalog.Catalog
	Dice      *dice.Engine
	Clock     clock.Clock

	HistoryWindow    int
	CombatLogEntries int
	// RetryInterval is the pause before the second narrator attempt
	RetryInterval time.Duration
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.GameState == nil {
		vb.RequiredField("GameState")
	}
	if c.Budget == nil {
		vb.RequiredField("Budget")
	}
	if c.Narrator == nil {
		vb.RequiredField("Narrator")
	}
	if c.Combat == nil {
		vb.RequiredField("Combat")
	}
	if c.Commerce == nil {
		vb.RequiredField("Commerce")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.Dice == nil {
		vb.RequiredField("Dice")
	}
	if c.HistoryWindow < 0 {
		vb.Field("HistoryWindow", "must not be negative")
	}

	return vb.Build()
}

type orchestrator struct {
	gameState gamestate.Repository
	budget    budget.Service
	narrator  narrator.Client
	combat    *combat.Machine
	commerce  *commerce.Engine
	catalog   *catalog.Catalog
	dice      *dice.Engine
	clock     clock.Clock

	historyWindow    int
	combatLogEntries int
	retryInterval    time.Duration
}

// NewOrchestrator creates a new action orchestrator with the provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	o := &orchestrator{
		gameState:        cfg.GameState,
		budget:           cfg.Budget,
		narrator:         cfg.Narrator,
		combat:           cfg.Combat,
		commerce:         cfg.Commerce,
		catalog:          cfg.Catalog,
		dice:             cfg.Dice,
		clock:            cfg.Clock,
		historyWindow:    cfg.HistoryWindow,
		combatLogEntries: cfg.CombatLogEntries,
		retryInterval:    cfg.RetryInterval,
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.historyWindow == 0 {
		o.historyWindow = defaultHistoryWindow
	}
	if o.combatLogEntries <= 0 {
		o.combatLogEntries = defaultCombatLogEntries
	}
	if o.retryInterval <= 0 {
		o.retryInterval = defaultRetryInterval
	}
	return o, nil
}

// turn is the working state of one action. Nothing in it is stored until
// the final Save.
type turn struct {
	input     *ProcessActionInput
	category  intent.Category
	wasCombat bool

	session   *entities.Session
	character *entities.Character

	// combatState is the encounter after this turn, including one that ended
	combatState *entities.CombatState
	combatLog   []entities.CombatLogEntry

	notes []string
	out   *ProcessActionOutput
}

func (t *turn) note(s string) {
	t.notes = append(t.notes, s)
}

func (o *orchestrator) ProcessAction(ctx context.Context, input *ProcessActionInput) (*ProcessActionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("session_id", input.SessionID, vb)
	errors.ValidateRequired("user_id", input.UserID, vb)
	if input.ActionText == "" && input.CombatAction == nil {
		vb.Field("action_text", "an action is required")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	loaded, err := o.gameState.Load(ctx, gamestate.LoadInput{
		SessionID: input.SessionID,
		UserID:    input.UserID,
	})
	if err != nil {
		return nil, err
	}
	if loaded.Session.Status == entities.SessionStatusEnded {
		return nil, errors.FailedPreconditionf("session %s has ended", input.SessionID)
	}
	if loaded.Character.Dead {
		return nil, errors.FailedPreconditionf("%s has died", loaded.Character.Name)
	}

	t := &turn{
		input:     input,
		category:  intent.Classify(input.ActionText, loaded.Session.InCombat()),
		wasCombat: loaded.Session.InCombat(),
		session:   loaded.Session.Clone(),
		character: loaded.Character.Clone(),
		out:       &ProcessActionOutput{Outcome: OutcomeOK},
	}
	t.out.Category = t.category

	// Input errors are returned before the budget is touched
	var combatAction *entities.CombatAction
	if t.wasCombat {
		combatAction, err = o.resolveCombatAction(t)
		if err != nil {
			return nil, err
		}
	} else if input.CombatAction != nil {
		return nil, errors.FailedPrecondition("there is no active combat")
	}

	reserved, err := o.budget.CheckAndReserve(ctx, &budget.CheckAndReserveInput{SessionID: input.SessionID})
	if err != nil {
		return nil, err
	}
	if !reserved.Allowed {
		return o.limitReached(ctx, loaded, t.category, reserved), nil
	}

	if err := o.playerPhase(ctx, t, combatAction); err != nil {
		o.release(ctx, reserved.Reservation)
		return nil, err
	}

	reply, err := o.narrate(ctx, t)
	if err != nil {
		o.release(ctx, reserved.Reservation)
		return nil, err
	}
	t.out.Usage = o.commit(ctx, reserved, reply)

	parsed := intent.Parse(reply.Text)
	t.out.Narrative = parsed.Narrative
	t.out.IntentStatus = parsed.Status
	if parsed.Status == intent.StatusMalformed {
		slog.WarnContext(ctx, "narrator intents block could not be parsed",
			"session_id", input.SessionID,
			"problem", parsed.Problem)
	}

	// Loot was claimed before narration, so the guard sees none pending
	decision := economy.Filter(parsed.Intent, t.character, economy.GuardContext{
		Category: t.category,
		InCombat: t.wasCombat,
	})
	economy.LogRejections(ctx, input.SessionID, decision.Rejections)
	t.out.Rejections = decision.Rejections

	if err := o.apply(ctx, t, &decision.Approved); err != nil {
		return nil, err
	}

	now := o.clock.Now().Unix()
	t.session.AppendHistory(o.historyWindow,
		entities.Message{Role: entities.RolePlayer, Content: playerLine(input), At: now},
		entities.Message{Role: entities.RoleNarrator, Content: t.out.Narrative, At: now},
	)
	if t.character.Dead {
		t.session.Status = entities.SessionStatusEnded
	}

	saved, err := o.gameState.Save(ctx, gamestate.SaveInput{Session: t.session, Character: t.character})
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist turn",
			"session_id", input.SessionID,
			"error", err)
		return nil, err
	}

	t.out.Character = saved.Character
	t.out.CharacterDead = saved.Character.Dead
	t.out.SessionEnded = saved.Session.Status == entities.SessionStatusEnded
	t.out.Combat = o.snapshot(t.combatState, saved.Character)
	if t.out.Rolls == nil {
		t.out.Rolls = []entities.DiceRoll{}
	}
	return t.out, nil
}

// playerPhase resolves everything the narrator must describe rather than
// decide: the combat round and any loot pickup.
func (o *orchestrator) playerPhase(ctx context.Context, t *turn, action *entities.CombatAction) error {
	if t.wasCombat {
		acted, err := o.combat.Act(ctx, &combat.ActInput{
			State:     t.session.Combat,
			Character: t.character,
			Action:    *action,
		})
		if err != nil {
			return err
		}
		before := len(t.session.Combat.Log)
		t.character = acted.Character
		t.combatState = acted.State
		t.combatLog = acted.State.Log[before:]
		t.out.Rolls = append(t.out.Rolls, acted.Rolls...)
		t.out.Applied.XPDelta += acted.XPGained
		t.out.Applied.LevelsGained += acted.LevelsGained

		if acted.Ended() {
			t.session.Combat = nil
			switch acted.State.Outcome {
			case entities.OutcomeVictory:
				t.session.PendingLoot = acted.Loot
				t.note("Every enemy is defeated. Their belongings lie where they fell until the player searches them.")
			case entities.OutcomeDefeat:
				t.note("The character has fallen. Narrate their death; the adventure ends here.")
			case entities.OutcomeFled:
				t.note("The character escaped. The enemies are left behind.")
			}
		} else {
			t.session.Combat = acted.State
		}
		return nil
	}

	if t.category.IsCombat() && t.category != intent.CategoryUseItem {
		t.note("No fight is underway. If this action starts one, declare the encounter.")
	}
	claim := economy.Filter(nil, t.character, economy.GuardContext{
		Category:    t.category,
		PendingLoot: t.session.PendingLoot,
	}).LootClaim
	if claim != nil {
		o.claimLoot(t, claim)
	}
	return nil
}

func (o *orchestrator) claimLoot(t *turn, claim *entities.PendingLoot) {
	t.character.Gold += claim.Gold
	t.out.Applied.GoldDelta += claim.Gold
	for _, li := range claim.Items {
		stack, err := o.catalog.Stack(li.ItemID, li.Quantity)
		if err != nil {
			stack = entities.InventoryItem{ItemID: li.ItemID, Name: li.ItemID, Quantity: li.Quantity}
		}
		t.character.AddItem(stack)
		t.out.Applied.ItemsAdded = append(t.out.Applied.ItemsAdded, entities.ItemDelta{ItemID: stack.ItemID, Quantity: li.Quantity})
	}
	t.session.PendingLoot = nil
	t.out.LootClaimed = claim
}

func (o *orchestrator) narrate(ctx context.Context, t *turn) (*narrator.NarrateOutput, error) {
	system, err := prompts.System(t.session.Setting, t.session.Options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render system prompt")
	}
	block := prompts.Context(&prompts.ContextInput{
		Character:   t.character,
		Session:     t.session,
		Category:    t.category,
		Catalog:     o.catalog,
		Combat:      t.combatState,
		CombatLog:   t.combatLog,
		LootClaimed: t.out.LootClaimed,
		Notes:       t.notes,
	})
	req := &narrator.NarrateInput{
		System:   system,
		Messages: prompts.Messages(t.session.History, block, playerLine(t.input)),
	}

	attempt := 0
	reply, err := backoff.Retry(ctx, func() (*narrator.NarrateOutput, error) {
		attempt++
		out, err := o.narrator.Narrate(ctx, req)
		if err == nil {
			return out, nil
		}
		if !errors.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		slog.WarnContext(ctx, "narrator call failed",
			"session_id", t.input.SessionID,
			"attempt", attempt,
			"error", err)
		return nil, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(o.retryInterval)),
		backoff.WithMaxTries(narratorAttempts),
	)
	if err != nil {
		slog.ErrorContext(ctx, "narrator unavailable",
			"session_id", t.input.SessionID,
			"attempts", attempt,
			"error", err)
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "the narrator is unavailable, try again").
			WithMeta("attempts", attempt)
	}
	return reply, nil
}

func (o *orchestrator) commit(ctx context.Context, reserved *budget.CheckAndReserveOutput, reply *narrator.NarrateOutput) *budget.Usage {
	committed, err := o.budget.Commit(ctx, &budget.CommitInput{
		Reservation:  reserved.Reservation,
		ActualTokens: int64(reply.TotalTokens),
	})
	if err != nil {
		// The turn already happened; the reservation stays counted
		slog.WarnContext(ctx, "failed to commit token usage",
			"session_id", reserved.Reservation.SessionID,
			"tokens", reply.TotalTokens,
			"error", err)
		return reserved.Usage
	}
	return committed.Usage
}

func (o *orchestrator) release(ctx context.Context, r *budget.Reservation) {
	if err := o.budget.Release(ctx, &budget.ReleaseInput{Reservation: r}); err != nil {
		slog.WarnContext(ctx, "failed to release token reservation",
			"session_id", r.SessionID,
			"error", err)
	}
}

func (o *orchestrator) limitReached(
	ctx context.Context,
	loaded *gamestate.LoadOutput,
	category intent.Category,
	reserved *budget.CheckAndReserveOutput,
) *ProcessActionOutput {
	slog.InfoContext(ctx, "token ceiling reached",
		"session_id", loaded.Session.ID,
		"reason", reserved.Reason)

	narrative := LimitSessionNarrative
	if reserved.Reason == budget.DenyGlobal {
		narrative = LimitGlobalNarrative
	}
	return &ProcessActionOutput{
		Outcome:   OutcomeLimitReached,
		Narrative: narrative,
		Category:  category,
		Rolls:     []entities.DiceRoll{},
		Character: loaded.Character,
		Combat:    o.snapshot(loaded.Session.Combat, loaded.Character),
		Usage:     reserved.Usage,
	}
}

func (o *orchestrator) snapshot(state *entities.CombatState, c *entities.Character) *CombatSnapshot {
	if state == nil {
		return nil
	}
	return &CombatSnapshot{
		Phase:            state.Phase,
		Round:            state.Round,
		Enemies:          state.Enemies,
		ValidTargets:     state.ValidTargets,
		AvailableActions: o.combat.AvailableActions(state, c),
		Log:              state.LastLog(o.combatLogEntries),
		Outcome:          state.Outcome,
	}
}

func playerLine(input *ProcessActionInput) string {
	if input.ActionText != "" {
		return input.ActionText
	}
	a := input.CombatAction
	switch {
	case a.TargetID != "":
		return string(a.Type) + " " + a.TargetID
	case a.ItemID != "":
		return string(a.Type) + " " + a.ItemID
	default:
		return string(a.Type)
	}
}
