// Package budget gates narrator calls on per-session and global daily token ceilings
package budget

//go:generate mockgen -destination=mock/mock_service.go -package=budgetmock github.com/KirkDiggler/rpg-narrator/internal/services/budget Service

import (
	"context"
)

// Service tracks token usage against daily ceilings
type Service interface {
	// CheckAndReserve tests whether one more narrator call fits under both
	// ceilings and, when it does, holds the estimate until Commit or Release.
	// A denied reservation is not an error.
	CheckAndReserve(ctx context.Context, input *CheckAndReserveInput) (*CheckAndReserveOutput, error)

	// Commit trades the held estimate for the actual token cost
	Commit(ctx context.Context, input *CommitInput) (*CommitOutput, error)

	// Release drops the held estimate without charging anything
	Release(ctx context.Context, input *ReleaseInput) error

	// Usage reads the current counters
	Usage(ctx context.Context, input *UsageInput) (*UsageOutput, error)
}

// DenyReason says which ceiling stopped a reservation
type DenyReason string

// Deny reasons
const (
	DenyNone    DenyReason = ""
	DenySession DenyReason = "session_limit"
	DenyGlobal  DenyReason = "global_limit"
)

// Usage is the counter snapshot returned with every action
type Usage struct {
	Day            string `json:"day"`
	SessionUsed    int64  `json:"session_used"`
	SessionCeiling int64  `json:"session_ceiling"`
	GlobalUsed     int64  `json:"global_used"`
	GlobalCeiling  int64  `json:"global_ceiling"`
}

// Reservation is a held estimate
type Reservation struct {
	SessionID string
	Day       string
	Estimate  int64
}

// CheckAndReserveInput identifies the session making the call
type CheckAndReserveInput struct {
	SessionID string
	// Estimate overrides the configured per-call estimate when positive
	Estimate int64
}

// CheckAndReserveOutput carries the decision
type CheckAndReserveOutput struct {
	Allowed     bool
	Reason      DenyReason
	Reservation *Reservation
	Usage       *Usage
}

// CommitInput settles a reservation
type CommitInput struct {
	Reservation  *Reservation
	ActualTokens int64
}

// CommitOutput is the usage after settlement
type CommitOutput struct {
	Usage *Usage
}

// ReleaseInput drops a reservation
type ReleaseInput struct {
	Reservation *Reservation
}

// UsageInput identifies the session to read
type UsageInput struct {
	SessionID string
}

// UsageOutput is the current snapshot
type UsageOutput struct {
	Usage *Usage
}
