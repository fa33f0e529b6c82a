package tcp

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CredentialRedisRepo caches at-rest password hashes by login id. It never
// holds a digest or anything a client could replay.
type CredentialRedisRepo struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCredentialRedisRepo connects to redisURL (redis://host:port/db) and pings it.
func NewCredentialRedisRepo(redisURL, password string, ttl time.Duration) (*CredentialRedisRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewCredentialRedisRepoFromClient(rdb, ttl), nil
}

func NewCredentialRedisRepoFromClient(client *redis.Client, ttl time.Duration) *CredentialRedisRepo {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CredentialRedisRepo{client: client, ttl: ttl}
}

func credentialKey(id string) string {
	return "operator:" + id
}

// CacheHash stores hash for id and refreshes the expiry.
func (r *CredentialRedisRepo) CacheHash(ctx context.Context, id, hash string) error {
	if r == nil || r.client == nil {
		return nil
	}
	key := credentialKey(id)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"password_hash": hash,
		"cached_at":     time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// CachedHash returns the cached hash for id, if any.
func (r *CredentialRedisRepo) CachedHash(ctx context.Context, id string) (string, bool, error) {
	if r == nil || r.client == nil {
		return "", false, nil
	}
	hash, err := r.client.HGet(ctx, credentialKey(id), "password_hash").Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, hash != "", nil
}

func (r *CredentialRedisRepo) Forget(ctx context.Context, id string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, credentialKey(id)).Err()
}

func (r *CredentialRedisRepo) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
