package v1alpha1

import (
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/action"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
)

// StartSessionRequest creates a character and a session
type StartSessionRequest struct {
	UserID        string                  `json:"user_id"`
	CharacterName string                  `json:"character_name"`
	Class         string                  `json:"class"`
	Abilities     *entities.AbilityScores `json:"abilities,omitempty"`
	Setting       string                  `json:"setting,omitempty"`
	Options       entities.GameOptions    `json:"options"`
}

// StartSessionResponse is the new session
type StartSessionResponse struct {
	Session   *entities.Session   `json:"session"`
	Character *entities.Character `json:"character"`
}

// GetSessionRequest reads a session
type GetSessionRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// GetSessionResponse is the stored session
type GetSessionResponse struct {
	Session   *entities.Session   `json:"session"`
	Character *entities.Character `json:"character"`
	Usage     *budget.Usage       `json:"usage,omitempty"`
}

// EndSessionRequest ends a session
type EndSessionRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// EndSessionResponse is the ended session
type EndSessionResponse struct {
	Session *entities.Session `json:"session"`
}

// ProcessActionRequest is one player turn
type ProcessActionRequest struct {
	SessionID    string                 `json:"session_id"`
	UserID       string                 `json:"user_id"`
	ActionText   string                 `json:"action_text,omitempty"`
	CombatAction *entities.CombatAction `json:"combat_action,omitempty"`
}

// ProcessActionResponse is the turn result envelope
type ProcessActionResponse struct {
	Result *action.ProcessActionOutput `json:"result"`
}
