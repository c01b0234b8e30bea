package session

import (
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/services/budget"
)

// StartSessionInput creates a character and the session that plays it
type StartSessionInput struct {
	UserID        string
	CharacterName string
	Class         entities.Class
	// Abilities overrides the class defaults when set
	Abilities *entities.AbilityScores
	Setting   string
	Options   entities.GameOptions
}

// StartSessionOutput is the new session
type StartSessionOutput struct {
	Session   *entities.Session
	Character *entities.Character
}

// GetSessionInput identifies a session. A non-empty UserID must own it.
type GetSessionInput struct {
	SessionID string
	UserID    string
}

// GetSessionOutput is the stored session with its character and token usage
type GetSessionOutput struct {
	Session   *entities.Session
	Character *entities.Character
	Usage     *budget.Usage
}

// EndSessionInput identifies the session to end
type EndSessionInput struct {
	SessionID string
	UserID    string
}

// EndSessionOutput is the ended session
type EndSessionOutput struct {
	Session *entities.Session
}
