package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix   = "auth:refresh:"
	blacklistKeyPrefix = "auth:blacklist:"
)

// RevocationStore tracks the current refresh token per user and denylisted
// access tokens, enabling logout and single-active-refresh-token semantics.
type RevocationStore interface {
	StoreRefreshToken(ctx context.Context, userID int64, token string, ttl time.Duration) error
	RefreshToken(ctx context.Context, userID int64) (string, error)
	DeleteRefreshToken(ctx context.Context, userID int64) error
	BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// RedisRevocationStore implements RevocationStore on a Redis client. Entries
// expire with the token they track, bounding store growth.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRevocationStore constructs a RedisRevocationStore.
func NewRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// StoreRefreshToken records token as the single active refresh token for the
// user, replacing any previous one.
func (s *RedisRevocationStore) StoreRefreshToken(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("%w: store refresh token: %s", ErrInternal, err)
	}
	return nil
}

// RefreshToken returns the active refresh token for the user, or ErrNotFound
// when none is stored.
func (s *RedisRevocationStore) RefreshToken(ctx context.Context, userID int64) (string, error) {
	token, err := s.client.Get(ctx, refreshKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get refresh token: %s", ErrInternal, err)
	}
	return token, nil
}

// DeleteRefreshToken drops the stored refresh token for the user.
func (s *RedisRevocationStore) DeleteRefreshToken(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: delete refresh token: %s", ErrInternal, err)
	}
	return nil
}

// BlacklistAccessToken denylists an access token. The ttl must equal the
// token's remaining lifetime.
func (s *RedisRevocationStore) BlacklistAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, blacklistKeyPrefix+token, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: blacklist token: %s", ErrInternal, err)
	}
	return nil
}

// IsBlacklisted reports whether the access token was denylisted.
func (s *RedisRevocationStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	val, err := s.client.Get(ctx, blacklistKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: check blacklist: %s", ErrInternal, err)
	}
	return val == "1", nil
}

func refreshKey(userID int64) string {
	return refreshKeyPrefix + strconv.FormatInt(userID, 10)
}

var _ RevocationStore = (*RedisRevocationStore)(nil)
