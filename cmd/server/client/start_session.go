package client

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/handlers/game/v1alpha1"
)

var (
	characterName string
	class         string
	setting       string
	goreLevel     string
	matureLevel   string
)

var startSessionCmd = &cobra.Command{
	Use:   "start-session",
	Short: "Create a character and start a session",
	Long:  `Create a character with the class's default ability scores and kit, then open a new session for it.`,
	RunE:  runStartSession,
}

func init() {
	startSessionCmd.Flags().StringVar(&characterName, "name", "", "Character name (required)")
	startSessionCmd.Flags().StringVar(&class, "class", "fighter", "Class: fighter, rogue, wizard, cleric, ranger")
	startSessionCmd.Flags().StringVar(&setting, "setting", "", "Free-text setting for the narrator")
	startSessionCmd.Flags().StringVar(&goreLevel, "gore", "mild", "Gore level: none, mild, moderate, graphic")
	startSessionCmd.Flags().StringVar(&matureLevel, "mature", "mild", "Mature content level: none, mild, moderate, graphic")
	_ = startSessionCmd.MarkFlagRequired("name") // nolint:errcheck // safe to ignore in init
}

func runStartSession(_ *cobra.Command, _ []string) error {
	client, cleanup, err := createGameClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Printf("Starting a session for %s the %s...", characterName, class)

	resp, err := client.StartSession(ctx, &v1alpha1.StartSessionRequest{
		UserID:        userID,
		CharacterName: characterName,
		Class:         class,
		Setting:       setting,
		Options: entities.GameOptions{
			GoreLevel:   goreLevel,
			MatureLevel: matureLevel,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Printf("Session ID: %s\n", resp.Session.ID)
	fmt.Printf("Character: %s (%s) HP %d/%d, %d gold\n",
		resp.Character.Name, resp.Character.Class, resp.Character.HP, resp.Character.MaxHP, resp.Character.Gold)
	fmt.Printf("\nNext: rpg-narrator client act --user-id %s --session-id %s --text \"I look around\"\n", userID, resp.Session.ID)

	return nil
}
