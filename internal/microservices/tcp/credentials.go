package tcp

import (
	"context"
	"errors"
	"sync"

	"github.com/ryoozeen/RCS/internal/middleware/auth"
)

// Enrollment is one operator account request. PasswordDigest is the client
// side digest; stores hash it again before it is kept.
type Enrollment struct {
	ID             string
	PasswordDigest string
	DisplayName    string
	CarModel       string
}

// CredentialStore is the operator account collaborator. Only a result greater
// than zero counts as success.
type CredentialStore interface {
	// Enroll returns the number of accounts created (0 when the id is taken).
	Enroll(ctx context.Context, e Enrollment) (int64, error)
	// Verify returns the number of accounts matching id and digest.
	Verify(ctx context.Context, id, passwordDigest string) (int64, error)
}

var (
	ErrIncompleteCredentials = errors.New("credentials: id and password are required")
	ErrNoCredentialStore     = errors.New("credentials: no store configured")
)

// MemoryCredentialStore keeps accounts in process memory. Used for local runs
// and tests; accounts are lost on restart.
type MemoryCredentialStore struct {
	mu       sync.RWMutex
	accounts map[string]memoryAccount
}

type memoryAccount struct {
	hash        string
	displayName string
	carModel    string
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{accounts: make(map[string]memoryAccount)}
}

func (s *MemoryCredentialStore) Enroll(ctx context.Context, e Enrollment) (int64, error) {
	if e.ID == "" || e.PasswordDigest == "" {
		return 0, ErrIncompleteCredentials
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// hash outside the lock, bcrypt is slow on purpose
	hash, err := auth.HashDigest(e.PasswordDigest)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[e.ID]; exists {
		return 0, nil
	}
	s.accounts[e.ID] = memoryAccount{hash: hash, displayName: e.DisplayName, carModel: e.CarModel}
	return 1, nil
}

func (s *MemoryCredentialStore) Verify(ctx context.Context, id, passwordDigest string) (int64, error) {
	if id == "" || passwordDigest == "" {
		return 0, ErrIncompleteCredentials
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	acct, ok := s.accounts[id]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	if err := auth.VerifyDigest(acct.hash, passwordDigest); err != nil {
		return 0, nil
	}
	return 1, nil
}
