// file: model/token.go

package model

import (
	"crypto/subtle"
	"errors"
	"time"
)

var (
	ErrTokenUserRequired   = errors.New("refresh token user id is required")
	ErrTokenHashRequired   = errors.New("refresh token hash is required")
	ErrTokenExpiryInPast   = errors.New("refresh token expiry must be after creation time")
	ErrRevokeConflict      = errors.New("refresh token already revoked with a different replacement")
	ErrReplacementRequired = errors.New("replacement token hash cannot be blank")
)

// RefreshToken holds the data for a refresh token in the database.
// Only the hash of the secret is ever stored; the plaintext exists solely
// in the response that issued it.
type RefreshToken struct {
	ID                  int        `json:"id"`
	UserID              int        `json:"user_id"`
	TokenHash           string     `json:"-"` // The hash is not exposed in JSON responses.
	ExpiresAt           time.Time  `json:"expires_at"`
	CreatedAt           time.Time  `json:"created_at"`
	RevokedAt           *time.Time `json:"revoked_at,omitempty"`
	ReplacedByTokenHash *string    `json:"-"`
}

// NewRefreshToken builds a fresh, active record. Construction fails if the
// expiry is not strictly after the creation time.
func NewRefreshToken(userID int, tokenHash string, now, expiresAt time.Time) (*RefreshToken, error) {
	if userID <= 0 {
		return nil, ErrTokenUserRequired
	}
	if tokenHash == "" {
		return nil, ErrTokenHashRequired
	}
	if !expiresAt.After(now) {
		return nil, ErrTokenExpiryInPast
	}
	return &RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

// IsExpired reports whether the record has reached its expiry. A record
// presented at exactly its expiry instant is already expired.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsActive reports whether the record can still be exchanged: not revoked
// and not expired.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && !t.IsExpired(now)
}

// Revoke transitions the record forward in its state machine. A second
// revoke with the same replacement hash is a no-op; a revoke with a
// different replacement than already recorded is a contract violation.
// RevokedAt is never unset once written.
func (t *RefreshToken) Revoke(now time.Time, replacedByTokenHash *string) error {
	if replacedByTokenHash != nil && *replacedByTokenHash == "" {
		return ErrReplacementRequired
	}

	if t.RevokedAt != nil {
		if replacedByTokenHash != nil && t.ReplacedByTokenHash != nil &&
			!HashEqual(*replacedByTokenHash, *t.ReplacedByTokenHash) {
			return ErrRevokeConflict
		}
		return nil
	}

	revokedAt := now
	t.RevokedAt = &revokedAt
	t.ReplacedByTokenHash = replacedByTokenHash
	return nil
}

// HashEqual compares two token hashes in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
