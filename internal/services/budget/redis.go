package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-narrator/internal/errors"
	"github.com/KirkDiggler/rpg-narrator/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-narrator/internal/redis"
)

const (
	// Key pattern: budget:{day}:session:{session_id}:{used|reserved}
	keyPrefix = "budget:"
	keyTTL    = 48 * time.Hour

	errSessionIDEmpty = "session ID cannot be empty"
	errReservationNil = "reservation cannot be nil"
	errNegativeActual = "actual tokens cannot be negative"
)

// KEYS: session used, session reserved, global used, global reserved
// ARGV: estimate, session ceiling, global ceiling, ttl seconds
// Returns {status, session used, global used} where status is 1 when
// reserved, 0 when the session ceiling denies and -1 when the global one does.
var reserveScript = redis.NewScript(`
local su = tonumber(redis.call('GET', KEYS[1])) or 0
local sr = tonumber(redis.call('GET', KEYS[2])) or 0
local gu = tonumber(redis.call('GET', KEYS[3])) or 0
local gr = tonumber(redis.call('GET', KEYS[4])) or 0
local est = tonumber(ARGV[1])
if su + sr + est > tonumber(ARGV[2]) then
  return {0, su, gu}
end
if gu + gr + est > tonumber(ARGV[3]) then
  return {-1, su, gu}
end
redis.call('INCRBY', KEYS[2], est)
redis.call('INCRBY', KEYS[4], est)
for i = 1, 4 do
  redis.call('EXPIRE', KEYS[i], ARGV[4])
end
return {1, su, gu}
`)

// KEYS: as reserve
// ARGV: estimate, actual, ttl seconds
// Returns {session used, global used}
var commitScript = redis.NewScript(`
local est = tonumber(ARGV[1])
for _, k in ipairs({KEYS[2], KEYS[4]}) do
  local left = redis.call('DECRBY', k, est)
  if left < 0 then
    redis.call('SET', k, 0)
  end
end
local su = redis.call('INCRBY', KEYS[1], ARGV[2])
local gu = redis.call('INCRBY', KEYS[3], ARGV[2])
for i = 1, 4 do
  redis.call('EXPIRE', KEYS[i], ARGV[3])
end
return {su, gu}
`)

// KEYS: session reserved, global reserved
// ARGV: estimate
var releaseScript = redis.NewScript(`
for _, k in ipairs(KEYS) do
  local left = redis.call('DECRBY', k, ARGV[1])
  if left < 0 then
    redis.call('SET', k, 0)
  end
end
return 1
`)

// Config holds the tracker's dependencies and ceilings
type Config struct {
	Client             redisclient.Client
	Clock              clock.Clock
	SessionDailyTokens int64
	GlobalDailyTokens  int64
	EstimatePerCall    int64
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Client == nil {
		vb.RequiredField("Client")
	}
	errors.ValidatePositive("SessionDailyTokens", c.SessionDailyTokens, vb)
	errors.ValidatePositive("GlobalDailyTokens", c.GlobalDailyTokens, vb)
	errors.ValidatePositive("EstimatePerCall", c.EstimatePerCall, vb)

	return vb.Build()
}

type redisService struct {
	client         redisclient.Client
	clock          clock.Clock
	sessionCeiling int64
	globalCeiling  int64
	estimate       int64
}

// NewRedis creates a redis-backed budget tracker
func NewRedis(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &redisService{
		client:         cfg.Client,
		clock:          c,
		sessionCeiling: cfg.SessionDailyTokens,
		globalCeiling:  cfg.GlobalDailyTokens,
		estimate:       cfg.EstimatePerCall,
	}, nil
}

// Ensure redisService implements Service
var _ Service = (*redisService)(nil)

func keys(day, sessionID string) []string {
	return []string{
		fmt.Sprintf("%s%s:session:%s:used", keyPrefix, day, sessionID),
		fmt.Sprintf("%s%s:session:%s:reserved", keyPrefix, day, sessionID),
		fmt.Sprintf("%s%s:global:used", keyPrefix, day),
		fmt.Sprintf("%s%s:global:reserved", keyPrefix, day),
	}
}

func (s *redisService) usage(day string, sessionUsed, globalUsed int64) *Usage {
	return &Usage{
		Day:            day,
		SessionUsed:    sessionUsed,
		SessionCeiling: s.sessionCeiling,
		GlobalUsed:     globalUsed,
		GlobalCeiling:  s.globalCeiling,
	}
}

func (s *redisService) CheckAndReserve(ctx context.Context, input *CheckAndReserveInput) (*CheckAndReserveOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	estimate := s.estimate
	if input.Estimate > 0 {
		estimate = input.Estimate
	}
	day := clock.DayKey(s.clock.Now())

	res, err := reserveScript.Run(ctx, s.client, keys(day, input.SessionID),
		estimate, s.sessionCeiling, s.globalCeiling, int64(keyTTL.Seconds())).Int64Slice()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to reserve token budget")
	}
	if len(res) != 3 {
		return nil, errors.Internalf("unexpected reserve reply of length %d", len(res))
	}

	out := &CheckAndReserveOutput{Usage: s.usage(day, res[1], res[2])}
	switch res[0] {
	case 1:
		out.Allowed = true
		out.Reservation = &Reservation{SessionID: input.SessionID, Day: day, Estimate: estimate}
	case 0:
		out.Reason = DenySession
	default:
		out.Reason = DenyGlobal
	}

	if !out.Allowed {
		slog.InfoContext(ctx, "token budget exhausted",
			"session_id", input.SessionID,
			"reason", string(out.Reason),
			"session_used", res[1],
			"global_used", res[2])
	}

	return out, nil
}

func (s *redisService) Commit(ctx context.Context, input *CommitInput) (*CommitOutput, error) {
	if input == nil || input.Reservation == nil {
		return nil, errors.InvalidArgument(errReservationNil)
	}
	if input.ActualTokens < 0 {
		return nil, errors.InvalidArgument(errNegativeActual)
	}
	r := input.Reservation

	res, err := commitScript.Run(ctx, s.client, keys(r.Day, r.SessionID),
		r.Estimate, input.ActualTokens, int64(keyTTL.Seconds())).Int64Slice()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "failed to commit token usage")
	}
	if len(res) != 2 {
		return nil, errors.Internalf("unexpected commit reply of length %d", len(res))
	}

	return &CommitOutput{Usage: s.usage(r.Day, res[0], res[1])}, nil
}

func (s *redisService) Release(ctx context.Context, input *ReleaseInput) error {
	if input == nil || input.Reservation == nil {
		return errors.InvalidArgument(errReservationNil)
	}
	r := input.Reservation
	k := keys(r.Day, r.SessionID)

	if err := releaseScript.Run(ctx, s.client, []string{k[1], k[3]}, r.Estimate).Err(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "failed to release token reservation")
	}
	return nil
}

func (s *redisService) Usage(ctx context.Context, input *UsageInput) (*UsageOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.InvalidArgument(errSessionIDEmpty)
	}

	day := clock.DayKey(s.clock.Now())
	k := keys(day, input.SessionID)

	vals, err := s.client.MGet(ctx, k[0], k[2]).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read token usage")
	}

	used := make([]int64, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt usage counter %s", k[i*2])
		}
		used[i] = n
	}

	return &UsageOutput{Usage: s.usage(day, used[0], used[1])}, nil
}
