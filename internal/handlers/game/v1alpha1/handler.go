// Package v1alpha1 handles the GameService gRPC interface
package v1alpha1

import (
	"context"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/action"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/session"
)

// HandlerConfig holds dependencies for the game handler
type HandlerConfig struct {
	SessionService session.Service
	ActionService  action.Service
}

// Validate ensures all required dependencies are present
func (c *HandlerConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.SessionService == nil {
		vb.RequiredField("SessionService")
	}
	if c.ActionService == nil {
		vb.RequiredField("ActionService")
	}
	return vb.Build()
}

// Handler implements GameServiceServer
type Handler struct {
	UnimplementedGameServiceServer
	sessionService session.Service
	actionService  action.Service
}

var _ GameServiceServer = (*Handler)(nil)

// NewHandler creates a new game handler with the given configuration
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Handler{
		sessionService: cfg.SessionService,
		actionService:  cfg.ActionService,
	}, nil
}

// StartSession creates a character and opens a session for it
func (h *Handler) StartSession(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error) {
	if req.UserID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("user_id is required"))
	}

	out, err := h.sessionService.StartSession(ctx, &session.StartSessionInput{
		UserID:        req.UserID,
		CharacterName: req.CharacterName,
		Class:         entities.Class(req.Class),
		Abilities:     req.Abilities,
		Setting:       req.Setting,
		Options:       req.Options,
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	return &StartSessionResponse{Session: out.Session, Character: out.Character}, nil
}

// GetSession returns a session with its character and token usage
func (h *Handler) GetSession(ctx context.Context, req *GetSessionRequest) (*GetSessionResponse, error) {
	if req.SessionID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("session_id is required"))
	}
	if req.UserID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("user_id is required"))
	}

	out, err := h.sessionService.GetSession(ctx, &session.GetSessionInput{
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	return &GetSessionResponse{Session: out.Session, Character: out.Character, Usage: out.Usage}, nil
}

// EndSession ends a session
func (h *Handler) EndSession(ctx context.Context, req *EndSessionRequest) (*EndSessionResponse, error) {
	if req.SessionID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("session_id is required"))
	}
	if req.UserID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("user_id is required"))
	}

	out, err := h.sessionService.EndSession(ctx, &session.EndSessionInput{
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	return &EndSessionResponse{Session: out.Session}, nil
}

// ProcessAction runs one player turn
func (h *Handler) ProcessAction(ctx context.Context, req *ProcessActionRequest) (*ProcessActionResponse, error) {
	if req.SessionID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("session_id is required"))
	}
	if req.UserID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("user_id is required"))
	}
	if req.ActionText == "" && req.CombatAction == nil {
		return nil, errors.ToGRPCError(errors.InvalidArgument("action_text or combat_action is required"))
	}

	out, err := h.actionService.ProcessAction(ctx, &action.ProcessActionInput{
		SessionID:    req.SessionID,
		UserID:       req.UserID,
		ActionText:   req.ActionText,
		CombatAction: req.CombatAction,
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	return &ProcessActionResponse{Result: out}, nil
}
