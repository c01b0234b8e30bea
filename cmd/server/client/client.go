// Package client provides test commands for the RPG Narrator gRPC service
package client

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/KirkDiggler/rpg-narrator/internal/handlers/game/v1alpha1"
)

var (
	// Connection flags
	serverAddr string
	timeout    time.Duration
	userID     string
)

// ClientCmd is the root command for all client test commands
var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Test client commands for the RPG Narrator",
	Long:  `Client commands allow you to play a session by making real gRPC requests.`,
}

func init() {
	ClientCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:50051", "gRPC server address")
	ClientCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "Request timeout")
	ClientCmd.PersistentFlags().StringVar(&userID, "user-id", "", "User ID that owns the session (required)")
	_ = ClientCmd.MarkPersistentFlagRequired("user-id") // nolint:errcheck // safe to ignore in init

	ClientCmd.AddCommand(startSessionCmd)
	ClientCmd.AddCommand(getSessionCmd)
	ClientCmd.AddCommand(endSessionCmd)
	ClientCmd.AddCommand(actCmd)
}

// createConnection creates a gRPC connection to the server
func createConnection() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	return conn, nil
}

// createGameClient creates a game service client
func createGameClient() (v1alpha1.GameServiceClient, func(), error) {
	conn, err := createConnection()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = conn.Close() // nolint:errcheck // safe to ignore in cleanup
	}

	return v1alpha1.NewGameServiceClient(conn), cleanup, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
