package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/handlers/game/v1alpha1"
	"github.com/KirkDiggler/rpg-narrator/internal/orchestrators/action"
)

var (
	actSessionID string
	actionText   string
	combatType   string
	targetID     string
	itemID       string
	rawOutput    bool
)

var actCmd = &cobra.Command{
	Use:   "act",
	Short: "Take one turn",
	Long: `Send free text, or during combat a structured action, and print the narration and what changed.

Examples:
  rpg-narrator client act --user-id user_1 --session-id sess_x --text "I sell my torch to the merchant"
  rpg-narrator client act --user-id user_1 --session-id sess_x --action attack --target enemy_1`,
	RunE: runAct,
}

func init() {
	actCmd.Flags().StringVar(&actSessionID, "session-id", "", "Session ID (required)")
	actCmd.Flags().StringVar(&actionText, "text", "", "What your character does")
	actCmd.Flags().StringVar(&combatType, "action", "", "Combat action: attack, defend, flee, use_item")
	actCmd.Flags().StringVar(&targetID, "target", "", "Enemy ID for attack")
	actCmd.Flags().StringVar(&itemID, "item", "", "Item ID for use_item")
	actCmd.Flags().BoolVar(&rawOutput, "json", false, "Print the full result as JSON")
	_ = actCmd.MarkFlagRequired("session-id") // nolint:errcheck // safe to ignore in init
}

func runAct(_ *cobra.Command, _ []string) error {
	client, cleanup, err := createGameClient()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req := &v1alpha1.ProcessActionRequest{
		SessionID:  actSessionID,
		UserID:     userID,
		ActionText: actionText,
	}
	if combatType != "" {
		req.CombatAction = &entities.CombatAction{
			Type:     entities.ActionType(combatType),
			TargetID: targetID,
			ItemID:   itemID,
		}
	}

	resp, err := client.ProcessAction(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to process action: %w", err)
	}

	if rawOutput {
		return printJSON(resp.Result)
	}
	printTurn(resp.Result)
	return nil
}

func printTurn(out *action.ProcessActionOutput) {
	if out.Outcome == action.OutcomeLimitReached {
		fmt.Println("The narrator has reached today's limit. Try again tomorrow.")
		return
	}

	fmt.Printf("%s\n\n", out.Narrative)

	for _, roll := range out.Rolls {
		fmt.Printf("  🎲 %s: %s = %d\n", roll.Label, roll.Formula, roll.Total)
	}
	if out.Applied.HPDelta != 0 {
		fmt.Printf("  HP %+d\n", out.Applied.HPDelta)
	}
	if out.Applied.GoldDelta != 0 {
		fmt.Printf("  Gold %+d\n", out.Applied.GoldDelta)
	}
	if out.Applied.XPDelta != 0 {
		fmt.Printf("  XP %+d\n", out.Applied.XPDelta)
	}
	for _, r := range out.Rejections {
		fmt.Printf("  ⚠️  ignored %s: %s\n", r.Field, r.Reason)
	}

	if out.Combat != nil {
		fmt.Printf("\nCombat round %d (%s)\n", out.Combat.Round, out.Combat.Phase)
		for _, e := range out.Combat.Enemies {
			fmt.Printf("  %s %s HP %d/%d\n", e.ID, e.Name, e.HP, e.MaxHP)
		}
		fmt.Printf("  Actions: %v\n", out.Combat.AvailableActions)
	}

	if c := out.Character; c != nil {
		fmt.Printf("\n%s HP %d/%d, %d gold, level %d\n", c.Name, c.HP, c.MaxHP, c.Gold, c.Level)
	}
	if out.SessionEnded {
		fmt.Println("\nThe session has ended.")
	}
}
