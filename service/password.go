// file: service/password.go

package service

import (
	"go-task-api/logger"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier is the external capability the auth flow depends on for
// password hashing and verification. The session manager never inspects
// hashes itself.
type PasswordVerifier interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}

// BcryptVerifier implements PasswordVerifier with bcrypt.
type BcryptVerifier struct {
	Cost int
}

func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{Cost: 14}
}

func (v *BcryptVerifier) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), v.Cost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

func (v *BcryptVerifier) Verify(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
