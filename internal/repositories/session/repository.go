// Package session provides the interface for session persistence
package session

//go:generate mockgen -destination=mock/mock_repository.go -package=sessionmock github.com/KirkDiggler/rpg-narrator/internal/repositories/session Repository

import (
	"context"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
)

// Repository defines the interface for session persistence and the per-user
// index of active sessions
type Repository interface {
	// Create stores a new session and adds it to the user's active index
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.AlreadyExists if a session with the same ID exists
	// Returns errors.ResourceExhausted when the user is at MaxActive
	// Returns errors.Aborted when the index changed concurrently
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a session by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if session doesn't exist
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// ListActive returns the ids of a user's active sessions
	// Returns errors.InvalidArgument for empty/invalid user IDs
	ListActive(ctx context.Context, input ListActiveInput) (*ListActiveOutput, error)

	// Deactivate removes a session from the user's active index
	// Returns errors.InvalidArgument for empty/invalid IDs
	Deactivate(ctx context.Context, input DeactivateInput) error
}

// CreateInput defines the input for creating a session
type CreateInput struct {
	Session *entities.Session
	// MaxActive caps active sessions per user; zero disables the check
	MaxActive int
}

// CreateOutput defines the output for creating a session
type CreateOutput struct {
	Session *entities.Session
}

// GetInput defines the input for getting a session
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a session
type GetOutput struct {
	Session *entities.Session
}

// ListActiveInput defines the input for listing active sessions
type ListActiveInput struct {
	UserID string
}

// ListActiveOutput defines the output for listing active sessions
type ListActiveOutput struct {
	SessionIDs []string
}

// DeactivateInput defines the input for deactivating a session
type DeactivateInput struct {
	UserID    string
	SessionID string
}
