package tcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ryoozeen/RCS/internal/middleware/auth"
)

// pgxQuerier is the part of *pgxpool.Pool the repository uses.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialPostgresRepo is the authoritative operator account store. The
// operators table is created by database.Migrate.
type CredentialPostgresRepo struct {
	db pgxQuerier
}

func NewCredentialPostgresRepo(db pgxQuerier) *CredentialPostgresRepo {
	return &CredentialPostgresRepo{db: db}
}

// Enroll inserts the account unless the login id is taken.
func (r *CredentialPostgresRepo) Enroll(ctx context.Context, e Enrollment) (int64, error) {
	if e.ID == "" || e.PasswordDigest == "" {
		return 0, ErrIncompleteCredentials
	}
	hash, err := auth.HashDigest(e.PasswordDigest)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO operators (id, login_id, password_hash, username, car_model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (login_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		uuid.New().String(),
		e.ID,
		hash,
		e.DisplayName,
		e.CarModel,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enroll operator: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Verify checks the digest against the stored hash and records the login.
func (r *CredentialPostgresRepo) Verify(ctx context.Context, id, passwordDigest string) (int64, error) {
	if id == "" || passwordDigest == "" {
		return 0, ErrIncompleteCredentials
	}
	hash, found, err := r.PasswordHash(ctx, id)
	if err != nil || !found {
		return 0, err
	}
	if auth.VerifyDigest(hash, passwordDigest) != nil {
		return 0, nil
	}
	if err := r.TouchLogin(ctx, id); err != nil {
		return 0, err
	}
	return 1, nil
}

// PasswordHash returns the stored bcrypt hash for id.
func (r *CredentialPostgresRepo) PasswordHash(ctx context.Context, id string) (string, bool, error) {
	var hash string
	err := r.db.QueryRow(ctx,
		`SELECT password_hash FROM operators WHERE login_id = $1 AND deleted_at IS NULL`, id,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get operator: %w", err)
	}
	return hash, true, nil
}

func (r *CredentialPostgresRepo) TouchLogin(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE operators SET last_login = $2 WHERE login_id = $1`, id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
