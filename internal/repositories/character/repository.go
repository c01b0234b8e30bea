// Package character provides the interface for character persistence
package character

//go:generate mockgen -destination=mock/mock_repository.go -package=charactermock github.com/KirkDiggler/rpg-narrator/internal/repositories/character Repository

import (
	"context"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// Repository defines the interface for character persistence.
// Per-action writes go through the gamestate repository so that a character
// and its session are stored together.
type Repository interface {
	// Create creates a new character
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.AlreadyExists if character with same ID exists
	// Returns errors.Internal for storage failures
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a character by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if character doesn't exist
	// Returns errors.Internal for storage failures
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// Delete deletes a character by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if character doesn't exist
	// Returns errors.Internal for storage failures
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// ListByUserID retrieves all characters for a user
	// Returns errors.InvalidArgument for empty/invalid user IDs
	// Returns errors.Internal for storage failures
	ListByUserID(ctx context.Context, input ListByUserIDInput) (*ListByUserIDOutput, error)
}

// CreateInput defines the input for creating a character
type CreateInput struct {
	Character *entities.Character
}

// CreateOutput defines the output for creating a character
type CreateOutput struct {
	Character *entities.Character
}

// GetInput defines the input for getting a character
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a character
type GetOutput struct {
	Character *entities.Character
}

// DeleteInput defines the input for deleting a character
type DeleteInput struct {
	ID string
}

// DeleteOutput defines the output for deleting a character
type DeleteOutput struct {
	// Empty for now, can be extended later
}

// ListByUserIDInput defines the input for listing characters by user
type ListByUserIDInput struct {
	UserID string
}

// ListByUserIDOutput defines the output for listing characters by user
type ListByUserIDOutput struct {
	Characters []*entities.Character
}
