package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"identity-service/internal/client"
	"identity-service/internal/otp"
	"identity-service/internal/util"

	goredis "github.com/redis/go-redis/v9"
)

const challengePrefix = "otp:"

// checkAndConsumeScript compares the stored digest against the
// presented one and deletes the key only on a match, in a single
// atomic step. Redis TTL handles expiry, so an expired entry is simply
// absent by the time the script runs.
const checkAndConsumeScript = `
local stored = redis.call("GET", KEYS[1])
if stored == false then
	return 0
end
if stored == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`

// OTPStore is a Redis-backed otp.Store. TTL-indexed keys make it safe
// for multi-instance deployments where the in-memory store would break.
type OTPStore struct {
	client *client.RedisClient
	ttl    time.Duration
	digits int
}

var _ otp.Store = (*OTPStore)(nil)

func NewOTPStore(client *client.RedisClient, ttl time.Duration, digits int) *OTPStore {
	return &OTPStore{client: client, ttl: ttl, digits: digits}
}

func (s *OTPStore) Issue(ctx context.Context, email string) (string, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	code, err := otp.GenerateCode(s.digits)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(s.ttl)

	key := challengePrefix + email
	if err := s.client.Set(ctx, key, otp.HashCode(code), s.ttl); err != nil {
		util.Error("Failed to store OTP challenge",
			zap.String("email", email),
			zap.Duration("ttl", s.ttl),
			zap.Error(err))
		return "", time.Time{}, fmt.Errorf("failed to store OTP challenge: %w", err)
	}

	util.Debug("OTP challenge stored",
		zap.String("email", email),
		zap.Duration("ttl", s.ttl))

	return code, expiresAt, nil
}

func (s *OTPStore) Check(ctx context.Context, email, presented string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := challengePrefix + email
	res, err := s.client.Eval(ctx, checkAndConsumeScript, []string{key}, otp.HashCode(presented))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		util.Error("Failed to check OTP challenge",
			zap.String("email", email),
			zap.Error(err))
		return false, fmt.Errorf("failed to check OTP challenge: %w", err)
	}

	matched, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type %T", res)
	}
	return matched == 1, nil
}

func (s *OTPStore) Purge(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := challengePrefix + email
	if err := s.client.Del(ctx, key); err != nil {
		util.Error("Failed to purge OTP challenge",
			zap.String("email", email),
			zap.Error(err))
		return fmt.Errorf("failed to purge OTP challenge: %w", err)
	}
	return nil
}
