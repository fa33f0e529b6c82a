package tcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ryoozeen/RCS/internal/middleware/auth"
)

// HybridCredentialStore combines Redis and PostgreSQL for operator accounts
// Redis: hash cache for repeated logins
// PostgreSQL: authoritative store, every enrollment lands here first
type HybridCredentialStore struct {
	redis    *CredentialRedisRepo
	postgres *CredentialPostgresRepo
	logger   *slog.Logger
}

func NewHybridCredentialStore(redis *CredentialRedisRepo, postgres *CredentialPostgresRepo, logger *slog.Logger) *HybridCredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridCredentialStore{redis: redis, postgres: postgres, logger: logger}
}

// Enroll writes to PostgreSQL; a new account's hash is then cached.
func (s *HybridCredentialStore) Enroll(ctx context.Context, e Enrollment) (int64, error) {
	n, err := s.postgres.Enroll(ctx, e)
	if err != nil || n == 0 {
		return n, err
	}
	// drop any stale entry, the next login warms the cache
	if err := s.redis.Forget(ctx, e.ID); err != nil {
		s.logger.Warn("redis_forget_failed", "login_id", e.ID, "error", err)
	}
	return n, nil
}

// Verify tries the Redis hash first, falls back to PostgreSQL and warms the cache.
func (s *HybridCredentialStore) Verify(ctx context.Context, id, passwordDigest string) (int64, error) {
	if id == "" || passwordDigest == "" {
		return 0, ErrIncompleteCredentials
	}

	hash, found, err := s.redis.CachedHash(ctx, id)
	if err != nil {
		s.logger.Warn("redis_read_failed", "login_id", id, "error", err)
	}
	if found {
		if auth.VerifyDigest(hash, passwordDigest) != nil {
			return 0, nil
		}
		s.touchLogin(id)
		return 1, nil
	}

	s.logger.Debug("redis_miss_fallback_to_postgres", "login_id", id)

	hash, found, err = s.postgres.PasswordHash(ctx, id)
	if err != nil || !found {
		return 0, err
	}
	if auth.VerifyDigest(hash, passwordDigest) != nil {
		return 0, nil
	}

	if err := s.redis.CacheHash(ctx, id, hash); err != nil {
		s.logger.Warn("redis_cache_warm_failed", "login_id", id, "error", err)
	}
	s.touchLogin(id)
	return 1, nil
}

// touchLogin records the login without holding up the reply.
func (s *HybridCredentialStore) touchLogin(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.postgres.TouchLogin(ctx, id); err != nil {
			s.logger.Error("last_login_update_failed", "login_id", id, "error", err)
		}
	}()
}

func (s *HybridCredentialStore) Close() error {
	return s.redis.Close()
}
