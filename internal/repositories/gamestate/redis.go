package gamestate

import (
	"context"
	"encoding/json"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-narrator/internal/redis"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/character"
	"github.com/KirkDiggler/rpg-narrator/internal/repositories/session"
)

const (
	errSessionIDEmpty = "session ID cannot be empty"
	errSnapshotNil    = "session and character are required"
	errMismatch       = "session does not belong to this character"
)

// RedisConfig contains configuration for the Redis game state repository.
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
}

// Validate validates the RedisConfig.
func (cfg *RedisConfig) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config cannot be nil")
	}
	if cfg.Client == nil {
		return errors.InvalidArgument("client cannot be nil")
	}
	return nil
}

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// NewRedis creates a new Redis-backed game state repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  c,
	}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

func (r *redisRepository) Load(ctx context.Context, input LoadInput) (*LoadOutput, error) {
	if input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	raw, err := r.client.Get(ctx, session.Key(input.SessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("session with ID %s not found", input.SessionID)
		}
		return nil, errors.Wrapf(err, "failed to get session")
	}
	sess, err := session.Decode(raw)
	if err != nil {
		return nil, err
	}
	// other users' sessions look missing
	if input.UserID != "" && sess.UserID != input.UserID {
		return nil, errors.NotFoundf("session with ID %s not found", input.SessionID)
	}

	raw, err = r.client.Get(ctx, character.Key(sess.CharacterID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("character %s for session %s not found", sess.CharacterID, sess.ID)
		}
		return nil, errors.Wrapf(err, "failed to get character")
	}
	char, err := character.Decode(raw)
	if err != nil {
		return nil, err
	}

	return &LoadOutput{Session: sess, Character: char}, nil
}

func (r *redisRepository) Save(ctx context.Context, input SaveInput) (*SaveOutput, error) {
	if input.Session == nil || input.Character == nil {
		return nil, errors.InvalidArgument(errSnapshotNil)
	}
	if input.Session.ID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}
	if input.Session.CharacterID != input.Character.ID {
		return nil, errors.InvalidArgument(errMismatch)
	}

	sess := input.Session.Clone()
	char := input.Character.Clone()
	now := r.clock.Now().Unix()
	expected := sess.Version
	sess.Version = expected + 1
	sess.UpdatedAt = now
	char.UpdatedAt = now

	sessData, err := json.Marshal(sess)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal session")
	}
	charData, err := json.Marshal(char)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal character")
	}

	sessKey := session.Key(sess.ID)
	charKey := character.Key(char.ID)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, sessKey).Bytes()
		if err != nil {
			if err == redis.Nil {
				return errors.NotFoundf("session with ID %s not found", sess.ID)
			}
			return errors.Wrapf(err, "failed to read session version")
		}
		stored, err := session.Decode(raw)
		if err != nil {
			return err
		}
		if stored.Version != expected {
			return errors.Abortedf("session %s is at version %d, expected %d", sess.ID, stored.Version, expected).
				WithMeta("stored_version", stored.Version)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, charKey, charData, 0)
			pipe.Set(ctx, sessKey, sessData, 0)
			if sess.Status == entities.SessionStatusEnded {
				pipe.SRem(ctx, session.ActiveIndexKey(sess.UserID), sess.ID)
			}
			return nil
		})
		return err
	}, sessKey, charKey)
	if err != nil {
		if err == redisclient.TxFailedErr {
			slog.WarnContext(ctx, "concurrent write to session",
				"session_id", sess.ID,
				"version", expected)
			return nil, errors.Aborted("session was modified concurrently, retry the action")
		}
		var custom *errors.Error
		if errors.As(err, &custom) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to save game state")
	}

	return &SaveOutput{Session: sess, Character: char}, nil
}
