package character

import (
	"context"
	"encoding/json"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-narrator/internal/entities"
	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-narrator/internal/redis"
)

const (
	characterKeyPrefix = "character:"
	userIndexPrefix    = "character:user:"

	// Error messages
	errCharacterNil     = "character cannot be nil"
	errCharacterIDEmpty = "character ID cannot be empty"
	errUserIDEmpty      = "user ID cannot be empty"
)

// Key is the redis key holding a character record
func Key(id string) string {
	return characterKeyPrefix + id
}

// Decode unmarshals a stored character record
func Decode(data []byte) (*entities.Character, error) {
	var c entities.Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal character data")
	}
	return &c, nil
}

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// RedisConfig contains configuration for the Redis character repository.
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

// NewRedis creates a new Redis-backed character repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Use real clock if none provided
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  c,
	}, nil
}

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Character == nil {
		return nil, errors.InvalidArgument(errCharacterNil)
	}
	if input.Character.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	character := input.Character.Clone()
	now := r.clock.Now().Unix()
	character.CreatedAt = now
	character.UpdatedAt = now

	data, err := json.Marshal(character)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal character data")
	}

	key := Key(character.ID)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check existence")
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("character with ID %s already exists", character.ID)
	}

	// SETNX guards against a concurrent create with the same id
	var setCmd *redis.BoolCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, key, data, 0)
		if character.UserID != "" {
			pipe.SAdd(ctx, userIndexPrefix+character.UserID, character.ID)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create character")
	}
	if !setCmd.Val() {
		return nil, errors.AlreadyExistsf("character with ID %s already exists", character.ID)
	}

	return &CreateOutput{Character: character}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	result, err := r.client.Get(ctx, Key(input.ID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("character with ID %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to get character")
	}

	character, err := Decode(result)
	if err != nil {
		return nil, err
	}

	return &GetOutput{Character: character}, nil
}

func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	// Get character to find indexes
	getOutput, err := r.Get(ctx, GetInput(input))
	if err != nil {
		return nil, err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, Key(input.ID))
	if getOutput.Character.UserID != "" {
		pipe.SRem(ctx, userIndexPrefix+getOutput.Character.UserID, input.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete character")
	}

	return &DeleteOutput{}, nil
}

func (r *redisRepository) ListByUserID(ctx context.Context, input ListByUserIDInput) (*ListByUserIDOutput, error) {
	if input.UserID == "" {
		return nil, errors.InvalidArgument(errUserIDEmpty)
	}

	indexKey := userIndexPrefix + input.UserID
	characterIDs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to get character IDs from Redis",
			"index_key", indexKey,
			"error", err.Error())
		return nil, errors.Wrapf(err, "failed to get characters from index %s", indexKey)
	}

	characters := make([]*entities.Character, 0, len(characterIDs))
	for _, id := range characterIDs {
		getOutput, err := r.Get(ctx, GetInput{ID: id})
		if err != nil {
			// If character doesn't exist, clean up the index
			if errors.IsNotFound(err) {
				slog.WarnContext(ctx, "character not found, cleaning up index",
					"character_id", id,
					"index_key", indexKey)
				r.client.SRem(ctx, indexKey, id)
				continue
			}
			return nil, errors.Wrapf(err, "failed to get character %s", id)
		}
		characters = append(characters, getOutput.Character)
	}

	slog.DebugContext(ctx, "listed characters by user",
		"user_id", input.UserID,
		"count", len(characters))

	return &ListByUserIDOutput{Characters: characters}, nil
}
