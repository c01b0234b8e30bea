// Package gamestate loads and saves a session together with its character.
// Save is the single commit point of an action.
package gamestate

//go:generate mockgen -destination=mock/mock_repository.go -package=gamestatemock github.com/KirkDiggler/rpg-narrator/internal/repositories/gamestate Repository

import (
	"context"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// Repository reads and writes the character/session pair
type Repository interface {
	// Load reads a session and its character
	// Returns errors.InvalidArgument for an empty session ID
	// Returns errors.NotFound if either record is missing or the session
	// belongs to someone other than UserID
	Load(ctx context.Context, input LoadInput) (*LoadOutput, error)

	// Save writes both records in one transaction when the stored session
	// version still equals Session.Version, then bumps the version
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.Aborted when the session changed since it was loaded
	// Returns errors.Internal for storage failures
	Save(ctx context.Context, input SaveInput) (*SaveOutput, error)
}

// LoadInput defines the input for loading game state
type LoadInput struct {
	SessionID string
	// UserID must own the session; empty skips the check
	UserID string
}

// LoadOutput holds the loaded pair
type LoadOutput struct {
	Session   *entities.Session
	Character *entities.Character
}

// SaveInput holds the post-action snapshot
type SaveInput struct {
	Session   *entities.Session
	Character *entities.Character
}

// SaveOutput holds what was stored, with the new version
type SaveOutput struct {
	Session   *entities.Session
	Character *entities.Character
}
