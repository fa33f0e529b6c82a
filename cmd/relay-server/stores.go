package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/ryoozeen/RCS/database"
	"github.com/ryoozeen/RCS/internal/config"
	"github.com/ryoozeen/RCS/internal/microservices/http-api/repository"
	"github.com/ryoozeen/RCS/internal/microservices/tcp"
)

// stores holds the credential backend selected by CREDENTIAL_BACKEND and the
// handles that have to be closed on exit.
type stores struct {
	credentials tcp.CredentialStore
	operators   repository.OperatorRepository // nil for the memory backend

	pool  *pgxpool.Pool
	gorm  *gorm.DB
	redis *tcp.CredentialRedisRepo
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	s := &stores{}
	if cfg.CredentialBackend == config.BackendMemory {
		logger.Warn("memory_credential_store", "detail", "accounts are lost on restart")
		s.credentials = tcp.NewMemoryCredentialStore()
		return s, nil
	}

	gdb, err := database.OpenGorm(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.gorm = gdb
	if err := database.Migrate(gdb, logger); err != nil {
		s.Close()
		return nil, err
	}
	s.operators = repository.NewOperatorRepository(gdb)

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pool = pool
	postgres := tcp.NewCredentialPostgresRepo(pool)

	switch cfg.CredentialBackend {
	case config.BackendPostgres:
		s.credentials = postgres
	case config.BackendHybrid:
		redis, err := tcp.NewCredentialRedisRepo(cfg.RedisURL, cfg.RedisPassword, cfg.CacheExpiry())
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = redis
		s.credentials = tcp.NewHybridCredentialStore(redis, postgres, logger)
	default:
		s.Close()
		return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
	return s, nil
}

func (s *stores) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.gorm != nil {
		database.CloseGorm(s.gorm)
	}
}
