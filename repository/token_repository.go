// file: repository/token_repository.go

package repository

import (
	"database/sql"
	"time"

	"go-task-api/logger"
	"go-task-api/model"

	"github.com/sirupsen/logrus"
)

// ITokenRepository defines the contract for refresh token database
// operations. Every method that participates in a rotation takes the
// caller's *sql.Tx so the read-check-write sequence stays inside one
// transaction boundary.
type ITokenRepository interface {
	Create(tx *sql.Tx, token *model.RefreshToken) error
	GetByTokenHashForUpdate(tx *sql.Tx, tokenHash string) (*model.RefreshToken, error)
	GetByUserAndHashForUpdate(tx *sql.Tx, userID int, tokenHash string) (*model.RefreshToken, error)
	MarkRevoked(tx *sql.Tx, token *model.RefreshToken) error
	RevokeAllForUser(tx *sql.Tx, userID int, now time.Time) (int64, error)
}

// TokenRepository implements ITokenRepository over Postgres.
type TokenRepository struct {
	DB *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

// Create inserts a new refresh token record into the database.
func (r *TokenRepository) Create(tx *sql.Tx, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing query to create a new refresh token")

	query := `INSERT INTO refresh_tokens (user_id, token_hash, created_at, expires_at) VALUES ($1, $2, $3, $4) RETURNING id`
	err := tx.QueryRow(query, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt).Scan(&token.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute create refresh token query")
		return err
	}
	return nil
}

// GetByTokenHashForUpdate retrieves a refresh token by its hashed value and
// locks the row for the duration of the transaction, so that two concurrent
// rotations of the same token serialize on this lookup.
func (r *TokenRepository) GetByTokenHashForUpdate(tx *sql.Tx, tokenHash string) (*model.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, replaced_by_token_hash
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE`
	return scanToken(tx.QueryRow(query, tokenHash))
}

// GetByUserAndHashForUpdate retrieves a refresh token scoped to its owner.
// Used by logout so one user cannot revoke another user's token.
func (r *TokenRepository) GetByUserAndHashForUpdate(tx *sql.Tx, userID int, tokenHash string) (*model.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, replaced_by_token_hash
		FROM refresh_tokens
		WHERE user_id = $1 AND token_hash = $2
		FOR UPDATE`
	return scanToken(tx.QueryRow(query, userID, tokenHash))
}

// MarkRevoked persists the revocation state of a record. Only revoked_at
// and replaced_by_token_hash are ever updated; user_id, token_hash and
// created_at are immutable after creation.
func (r *TokenRepository) MarkRevoked(tx *sql.Tx, token *model.RefreshToken) error {
	log := logger.Log.WithField("user_id", token.UserID)
	log.Info("Executing query to revoke refresh token")

	query := `UPDATE refresh_tokens SET revoked_at = $1, replaced_by_token_hash = $2 WHERE id = $3`
	_, err := tx.Exec(query, token.RevokedAt, token.ReplacedByTokenHash, token.ID)
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke refresh token query")
		return err
	}
	return nil
}

// RevokeAllForUser revokes every currently active refresh token for a user
// and reports how many records were touched. Used for explicit
// "log out everywhere" and for the reuse-detection escalation.
func (r *TokenRepository) RevokeAllForUser(tx *sql.Tx, userID int, now time.Time) (int64, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to revoke all refresh tokens for a user")

	query := `UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL AND expires_at > $1`
	result, err := tx.Exec(query, now, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke all refresh tokens query")
		return 0, err
	}
	return result.RowsAffected()
}

func scanToken(row *sql.Row) (*model.RefreshToken, error) {
	token := &model.RefreshToken{}
	err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.ReplacedByTokenHash,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Log.WithError(err).Error("Failed to scan refresh token row")
		}
		return nil, err // Return sql.ErrNoRows if not found
	}
	return token, nil
}
