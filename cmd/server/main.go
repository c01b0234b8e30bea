// Package main is the entry point for the narrator gRPC server
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-narrator/cmd/server/client"
)

var rootCmd = &cobra.Command{
	Use:   "rpg-narrator",
	Short: "RPG Narrator gRPC Server",
	Long:  `RPG Narrator runs a turn-based adventure where an LLM narrates and the server owns every rule.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(client.ClientCmd)
}
