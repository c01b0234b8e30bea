package session

import (
	"context"
	"encoding/json"
	"slices"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-narrator/internal/redis"
)

const (
	// Key pattern: session:{id} and session:user:{user_id}:active
	sessionKeyPrefix = "session:"
	userIndexPrefix  = "session:user:"
	activeSuffix     = ":active"

	// Error messages
	errSessionNil     = "session cannot be nil"
	errSessionIDEmpty = "session ID cannot be empty"
	errUserIDEmpty    = "user ID cannot be empty"
)

// Key is the redis key holding a session record
func Key(id string) string {
	return sessionKeyPrefix + id
}

// ActiveIndexKey is the set of a user's active session ids
func ActiveIndexKey(userID string) string {
	return userIndexPrefix + userID + activeSuffix
}

// Decode unmarshals a stored session record
func Decode(data []byte) (*entities.Session, error) {
	var s entities.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal session data")
	}
	return &s, nil
}

// RedisConfig contains configuration for the Redis session repository.
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

// NewRedis creates a new Redis-backed session repository
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

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Session == nil {
		return nil, errors.InvalidArgument(errSessionNil)
	}
	if input.Session.ID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}
	if input.Session.UserID == "" {
		return nil, errors.InvalidArgument(errUserIDEmpty)
	}

	sess := input.Session.Clone()
	now := r.clock.Now().Unix()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	sess.Version = 1
	if sess.Status == "" {
		sess.Status = entities.SessionStatusActive
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal session")
	}

	key := Key(sess.ID)
	indexKey := ActiveIndexKey(sess.UserID)

	// WATCH the index so two concurrent starts cannot both squeeze under the limit
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return errors.Wrapf(err, "failed to check existence")
		}
		if exists > 0 {
			return errors.AlreadyExistsf("session with ID %s already exists", sess.ID)
		}

		if input.MaxActive > 0 {
			active, err := tx.SCard(ctx, indexKey).Result()
			if err != nil {
				return errors.Wrapf(err, "failed to count active sessions")
			}
			if active >= int64(input.MaxActive) {
				return errors.ResourceExhaustedf("user %s already has %d active sessions", sess.UserID, active).
					WithMeta("max_active", input.MaxActive)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, indexKey, sess.ID)
			return nil
		})
		return err
	}, indexKey, key)
	if err != nil {
		if err == redisclient.TxFailedErr {
			return nil, errors.Aborted("active sessions changed concurrently, retry")
		}
		var custom *errors.Error
		if errors.As(err, &custom) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to create session")
	}

	return &CreateOutput{Session: sess}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	result, err := r.client.Get(ctx, Key(input.ID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("session with ID %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to get session")
	}

	sess, err := Decode(result)
	if err != nil {
		return nil, err
	}

	return &GetOutput{Session: sess}, nil
}

func (r *redisRepository) ListActive(ctx context.Context, input ListActiveInput) (*ListActiveOutput, error) {
	if input.UserID == "" {
		return nil, errors.InvalidArgument(errUserIDEmpty)
	}

	ids, err := r.client.SMembers(ctx, ActiveIndexKey(input.UserID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list active sessions")
	}
	slices.Sort(ids)

	return &ListActiveOutput{SessionIDs: ids}, nil
}

func (r *redisRepository) Deactivate(ctx context.Context, input DeactivateInput) error {
	if input.UserID == "" {
		return errors.InvalidArgument(errUserIDEmpty)
	}
	if input.SessionID == "" {
		return errors.InvalidArgument(errSessionIDEmpty)
	}

	if err := r.client.SRem(ctx, ActiveIndexKey(input.UserID), input.SessionID).Err(); err != nil {
		return errors.Wrapf(err, "failed to deactivate session")
	}
	return nil
}
