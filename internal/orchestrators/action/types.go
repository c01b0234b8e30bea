package action

import (
	"github.com/KirkDiggler/rpg-narrator/internal/engine/economy"
	"github.com/KirkDiggler/rpg-narrator/internal/engine/intent"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
)

// Outcome is how the turn ended
type Outcome string

// Outcomes
const (
	OutcomeOK           Outcome = "ok"
	OutcomeLimitReached Outcome = "limit_reached"
)

// CommerceKind distinguishes sales from purchases
type CommerceKind string

// Commerce kinds
const (
	CommerceSell CommerceKind = "sell"
	CommerceBuy  CommerceKind = "buy"
)

// ProcessActionInput is one player turn
type ProcessActionInput struct {
	SessionID string
	// UserID must own the session
	UserID     string
	ActionText string
	// CombatAction is the structured choice during combat. When nil, the
	// action is derived from ActionText where that is unambiguous.
	CombatAction *entities.CombatAction
}

// AppliedDeltas is what actually changed on the character and session
type AppliedDeltas struct {
	HPDelta      int                  `json:"hp_delta"`
	GoldDelta    int                  `json:"gold_delta"`
	XPDelta      int                  `json:"xp_delta"`
	LevelsGained int                  `json:"levels_gained,omitempty"`
	ItemsAdded   []entities.ItemDelta `json:"items_added,omitempty"`
	ItemsRemoved []entities.ItemDelta `json:"items_removed,omitempty"`
	Location     string               `json:"location,omitempty"`
	WorldState   map[string]any       `json:"world_state,omitempty"`
}

// CommerceResult reports one commerce directive. Error is set when the engine
// refused it and nothing changed.
type CommerceResult struct {
	Kind          CommerceKind `json:"kind"`
	ItemID        string       `json:"item_id"`
	Gold          int          `json:"gold"`
	QuotedPrice   int          `json:"quoted_price,omitempty"`
	PriceMismatch bool         `json:"price_mismatch,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// CombatSnapshot is the encounter as the player sees it after the turn
type CombatSnapshot struct {
	Phase            entities.Phase            `json:"phase"`
	Round            int                       `json:"round"`
	Enemies          []entities.Enemy          `json:"enemies"`
	ValidTargets     []string                  `json:"valid_targets"`
	AvailableActions []entities.ActionType     `json:"available_actions"`
	Log              []entities.CombatLogEntry `json:"log"`
	Outcome          entities.CombatOutcome    `json:"outcome,omitempty"`
}

// ProcessActionOutput is the response envelope
type ProcessActionOutput struct {
	Outcome      Outcome               `json:"outcome"`
	Narrative    string                `json:"narrative"`
	Category     intent.Category       `json:"category"`
	IntentStatus intent.Status         `json:"intent_status,omitempty"`
	Applied      AppliedDeltas         `json:"applied"`
	Rejections   []economy.Rejection   `json:"rejections,omitempty"`
	Commerce     []CommerceResult      `json:"commerce,omitempty"`
	LootClaimed  *entities.PendingLoot `json:"loot_claimed,omitempty"`
	Rolls        []entities.DiceRoll   `json:"rolls"`
	Character    *entities.Character   `json:"character"`
	Combat       *CombatSnapshot       `json:"combat,omitempty"`

	CharacterDead bool `json:"character_dead"`
	SessionEnded  bool `json:"session_ended"`

	Usage *budget.Usage `json:"usage,omitempty"`
}
