package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials hashes and verifies login secrets. The session core never
// depends on hashing internals, only on this contract.
type Credentials interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type BcryptCredentials struct{}

func (BcryptCredentials) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (BcryptCredentials) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
