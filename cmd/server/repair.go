package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-narrator/internal/config"
	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	redisclient "github.com/KirkDiggler/rpg-narrator/internal/redis"
	characterrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/character"
	sessionrepo "github.com/KirkDiggler/rpg-narrator/internal/repositories/session"
)

var applyRepair bool

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Find undecodable records and stale active-session entries",
	Long: `Scan stored sessions and characters for records that no longer decode, and
active-session indexes that point at ended or missing sessions. Nothing is
changed unless --apply is given.`,
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	repairCmd.Flags().BoolVar(&applyRepair, "apply", false, "Delete corrupted records and prune stale index entries")
}

type staleEntry struct {
	IndexKey  string
	SessionID string
	Reason    string
}

type repairReport struct {
	Checked   int
	Corrupted []string
	Stale     []staleEntry
}

func runRepair(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := redisclient.NewClient(cfg.Redis.Endpoint, &redisclient.Options{
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		UseTLS:   cfg.Redis.UseTLS,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer func() {
		_ = client.Close() // nolint:errcheck // safe to ignore on exit
	}()

	report, err := repair(cmd.Context(), client, applyRepair)
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d records, found %d corrupted and %d stale index entries\n",
		report.Checked, len(report.Corrupted), len(report.Stale))
	for _, key := range report.Corrupted {
		fmt.Printf("  ✗ %s does not decode\n", key)
	}
	for _, e := range report.Stale {
		fmt.Printf("  ✗ %s lists %s (%s)\n", e.IndexKey, e.SessionID, e.Reason)
	}
	if applyRepair && (len(report.Corrupted) > 0 || len(report.Stale) > 0) {
		fmt.Println("Cleanup complete")
	}
	return nil
}

// repair walks session and character records. Index keys share the record
// prefixes and are told apart by their ":user:" segment.
func repair(ctx context.Context, client redisclient.Client, apply bool) (*repairReport, error) {
	report := &repairReport{}

	decoders := map[string]func([]byte) error{
		"session:": func(b []byte) error {
			_, err := sessionrepo.Decode(b)
			return err
		},
		"character:": func(b []byte) error {
			_, err := characterrepo.Decode(b)
			return err
		},
	}

	for prefix, decode := range decoders {
		iter := client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			if strings.HasPrefix(key, prefix+"user:") {
				continue
			}
			report.Checked++

			data, err := client.Get(ctx, key).Bytes()
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", key, err)
			}
			if decode(data) != nil {
				report.Corrupted = append(report.Corrupted, key)
			}
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan %s keys: %w", prefix, err)
		}
	}

	iter := client.Scan(ctx, 0, sessionrepo.ActiveIndexKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := client.SMembers(ctx, indexKey).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", indexKey, err)
		}
		for _, id := range ids {
			if reason := staleReason(ctx, client, id); reason != "" {
				report.Stale = append(report.Stale, staleEntry{IndexKey: indexKey, SessionID: id, Reason: reason})
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan active indexes: %w", err)
	}

	if !apply {
		return report, nil
	}

	for _, key := range report.Corrupted {
		if err := client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	for _, e := range report.Stale {
		if err := client.SRem(ctx, e.IndexKey, e.SessionID).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune %s from %s: %w", e.SessionID, e.IndexKey, err)
		}
	}

	return report, nil
}

func staleReason(ctx context.Context, client redisclient.Client, sessionID string) string {
	data, err := client.Get(ctx, sessionrepo.Key(sessionID)).Bytes()
	if errors.Is(err, redisclient.Nil) {
		return "missing"
	}
	if err != nil {
		return "unreadable"
	}
	sess, err := sessionrepo.Decode(data)
	if err != nil {
		return "corrupted"
	}
	if sess.Status == entities.SessionStatusEnded {
		return "ended"
	}
	return ""
}
