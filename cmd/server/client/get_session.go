package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-narrator/internal/handlers/game/v1alpha1"
)

var getSessionID string

var getSessionCmd = &cobra.Command{
	Use:   "get-session",
	Short: "Show a session with its character and token usage",
	RunE:  runGetSession,
}

func init() {
	getSessionCmd.Flags().StringVar(&getSessionID, "session-id", "", "Session ID (required)")
	_ = getSessionCmd.MarkFlagRequired("session-id") // nolint:errcheck // safe to ignore in init
}

func runGetSession(_ *cobra.Command, _ []string) error {
	client, cleanup, err := createGameClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.GetSession(ctx, &v1alpha1.GetSessionRequest{
		SessionID: getSessionID,
		UserID:    userID,
	})
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	return printJSON(resp)
}
