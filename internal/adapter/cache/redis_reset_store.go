package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jitendra7073/HSM-backend-sub001/internal/domain"
	"github.com/Jitendra7073/HSM-backend-sub001/internal/repository"
)

const resetKeyPrefix = "reset:"

// RedisResetStore implements ResetTokenRepository backed by Redis.
//
// Keys carry a TTL of twice the reset window so a just-expired token is
// still readable: redemption must distinguish "expired" (delete + reject)
// from "unknown". The ExpiresAt stored in the payload is authoritative.
type RedisResetStore struct {
	client redis.UniversalClient
}

var _ repository.ResetTokenRepository = (*RedisResetStore)(nil)

// NewRedisResetStore constructs a Redis-backed reset token store.
func NewRedisResetStore(client redis.UniversalClient) *RedisResetStore {
	return &RedisResetStore{client: client}
}

type resetPayload struct {
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Create stores the reset capability keyed by its token string.
func (s *RedisResetStore) Create(ctx context.Context, token domain.ResetToken) error {
	payload, err := json.Marshal(resetPayload{UserID: token.UserID, ExpiresAt: token.ExpiresAt})
	if err != nil {
		return fmt.Errorf("marshal reset token: %w", err)
	}
	ttl := 2 * time.Until(token.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, resetKeyPrefix+token.Token, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist reset token: %w", err)
	}
	return nil
}

// GetByToken loads the reset capability by exact token match.
func (s *RedisResetStore) GetByToken(ctx context.Context, token string) (domain.ResetToken, error) {
	bytes, err := s.client.Get(ctx, resetKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ResetToken{}, repository.ErrNotFound
		}
		return domain.ResetToken{}, fmt.Errorf("load reset token: %w", err)
	}
	var payload resetPayload
	if err := json.Unmarshal(bytes, &payload); err != nil {
		return domain.ResetToken{}, fmt.Errorf("decode reset token: %w", err)
	}
	return domain.ResetToken{Token: token, UserID: payload.UserID, ExpiresAt: payload.ExpiresAt}, nil
}

// Delete removes the token; deleting an absent token is not an error.
func (s *RedisResetStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, resetKeyPrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}
