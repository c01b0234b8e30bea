package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-narrator/internal/handlers/game/v1alpha1"
)

var endSessionID string

var endSessionCmd = &cobra.Command{
	Use:   "end-session",
	Short: "End a session",
	RunE:  runEndSession,
}

func init() {
	endSessionCmd.Flags().StringVar(&endSessionID, "session-id", "", "Session ID (required)")
	_ = endSessionCmd.MarkFlagRequired("session-id") // nolint:errcheck // safe to ignore in init
}

func runEndSession(_ *cobra.Command, _ []string) error {
	client, cleanup, err := createGameClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.EndSession(ctx, &v1alpha1.EndSessionRequest{
		SessionID: endSessionID,
		UserID:    userID,
	})
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	fmt.Printf("Session %s is %s\n", resp.Session.ID, resp.Session.Status)
	return nil
}
