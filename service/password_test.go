// file: service/password_test.go

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

// TestBcryptVerifier_HashAndVerify ensures that password hashing and
// verification work correctly.
func TestBcryptVerifier_HashAndVerify(t *testing.T) {
	// MinCost keeps the test fast; production uses the default of 14.
	verifier := &BcryptVerifier{Cost: bcrypt.MinCost}
	password := "mySecretPassword123"

	hashedPassword, err := verifier.Hash(password)
	assert.NoError(t, err)
	assert.NotEqual(t, password, hashedPassword, "hashed password should not equal the original")

	assert.True(t, verifier.Verify(hashedPassword, password))
	assert.False(t, verifier.Verify(hashedPassword, "notMyPassword"))
}
