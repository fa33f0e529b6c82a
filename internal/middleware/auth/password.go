package auth

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// Digest is the hash the console applies before a password leaves the client:
// base64(SHA-256(password)). The relay only ever sees this value.
func Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// HashDigest creates the bcrypt hash stored at rest for a client digest.
func HashDigest(digest string) (string, error) {
	// the cost determines the computational complexity of the hashing process
	// default cost is 10, enough for a login that happens once per session
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(digest), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// VerifyDigest checks if the provided digest matches the stored bcrypt hash.
func VerifyDigest(hashed, digest string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(digest))
}
