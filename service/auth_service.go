package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-task-api/logger"
	"go-task-api/model"
	"go-task-api/repository"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidCredentials covers both a bad email/password combination
	// and a refresh secret that resolves to no active record. The two are
	// deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrReuseDetected is internal only: the boundary layer must map it to
	// the exact same response as ErrInvalidCredentials. By the time it is
	// returned, every active session of the affected user has been revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrStoreUnavailable wraps persistence failures. The operation that
	// hit it is aborted and rolled back; no partial rotation survives.
	ErrStoreUnavailable = errors.New("token store unavailable")

	ErrEmailTaken = errors.New("email already registered")
)

// TokenPair is what every successful login or refresh returns. The refresh
// token plaintext appears here exactly once and is never retrievable again.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthService orchestrates the refresh token lifecycle: login issuance,
// rotation-on-refresh, logout and reuse-detection escalation. Every
// operation that mutates token state runs inside a single database
// transaction, with the record row locked between the "is this active"
// check and the revocation write.
type AuthService struct {
	db           *sql.DB
	userRepo     repository.IUserRepository
	tokenRepo    repository.ITokenRepository
	tokenService *TokenService
	verifier     PasswordVerifier
	cache        ICacheClient
	graceWindow  time.Duration
}

// NewAuthService wires the session manager. cache may be nil (or
// graceWindow zero) to disable the benign-replay grace window entirely.
func NewAuthService(
	db *sql.DB,
	userRepo repository.IUserRepository,
	tokenRepo repository.ITokenRepository,
	tokenService *TokenService,
	verifier PasswordVerifier,
	cache ICacheClient,
	graceWindow time.Duration,
) *AuthService {
	return &AuthService{
		db:           db,
		userRepo:     userRepo,
		tokenRepo:    tokenRepo,
		tokenService: tokenService,
		verifier:     verifier,
		cache:        cache,
		graceWindow:  graceWindow,
	}
}

// NormalizeEmail trims and lowercases an email address so lookups and
// uniqueness checks agree on one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	email := NormalizeEmail(req.Email)

	if _, err := s.userRepo.GetUserByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, storeError(err)
	}

	hashedPassword, err := s.verifier.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: req.Username,
		Email:    email,
		Password: hashedPassword,
	}
	if err := s.userRepo.CreateUser(user); err != nil {
		return nil, storeError(err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login validates credentials and issues a fresh access/refresh pair. A
// missing user and a wrong password produce the identical error, so callers
// cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = NormalizeEmail(email)
	log := logger.Log.WithField("email", email)

	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Login failed: unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, storeError(err)
	}

	if !s.verifier.Verify(user.Password, password) {
		log.Warn("Login failed: password mismatch")
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	descriptor, err := s.tokenService.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record, err := model.NewRefreshToken(user.ID, descriptor.TokenHash, now, descriptor.ExpiresAt)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError(err)
	}
	defer tx.Rollback()

	if err := s.tokenRepo.Create(tx, record); err != nil {
		return nil, storeError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeError(err)
	}

	log.WithField("user_id", user.ID).Info("User logged in")

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     descriptor.Plain,
		RefreshExpiresAt: descriptor.ExpiresAt,
	}, nil
}

// Refresh rotates a refresh token: the presented record is revoked, a new
// one is issued and linked to it, and a fresh access token is minted — all
// inside one transaction, with the record row locked so that at most one
// rotation can succeed per record.
//
// Presenting a token that is expired or already revoked is treated as a
// reuse signal: every active session of the owning user is terminated
// before the call fails. With the grace window enabled, a replay that
// arrives shortly after a successful rotation is served the already-rotated
// result instead.
func (s *AuthService) Refresh(ctx context.Context, refreshTokenPlain string) (*TokenPair, error) {
	if strings.TrimSpace(refreshTokenPlain) == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := s.tokenService.HashRefreshToken(refreshTokenPlain)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError(err)
	}
	defer tx.Rollback()

	record, err := s.tokenRepo.GetByTokenHashForUpdate(tx, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Log.Warn("Refresh failed: token hash not found")
			return nil, ErrInvalidCredentials
		}
		return nil, storeError(err)
	}

	now := time.Now().UTC()

	if !record.IsActive(now) {
		if pair := s.replayFromCache(ctx, hash); pair != nil {
			logger.Log.WithField("user_id", record.UserID).Info("Replay within grace window, serving rotated result")
			return pair, nil
		}
		return nil, s.escalateReuse(tx, record, now)
	}

	descriptor, err := s.tokenService.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := record.Revoke(now, &descriptor.TokenHash); err != nil {
		return nil, err
	}
	if err := s.tokenRepo.MarkRevoked(tx, record); err != nil {
		return nil, storeError(err)
	}

	newRecord, err := model.NewRefreshToken(record.UserID, descriptor.TokenHash, now, descriptor.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.tokenRepo.Create(tx, newRecord); err != nil {
		return nil, storeError(err)
	}

	user, err := s.userRepo.GetUserByID(record.UserID)
	if err != nil {
		return nil, storeError(err)
	}
	accessToken, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError(err)
	}

	logger.Log.WithField("user_id", record.UserID).Info("Refresh token rotated")

	pair := &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     descriptor.Plain,
		RefreshExpiresAt: descriptor.ExpiresAt,
	}
	s.cacheRotatedResult(ctx, hash, pair)

	return pair, nil
}

// Logout revokes the presented refresh token without a replacement. It is
// idempotent: a blank token, an unknown token or an already-revoked token
// are all silent no-ops. Logout never escalates to mass revocation; it is a
// voluntary termination, not a reuse signal.
func (s *AuthService) Logout(ctx context.Context, userID int, refreshTokenPlain string) error {
	if strings.TrimSpace(refreshTokenPlain) == "" {
		return nil
	}

	hash, err := s.tokenService.HashRefreshToken(refreshTokenPlain)
	if err != nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err)
	}
	defer tx.Rollback()

	record, err := s.tokenRepo.GetByUserAndHashForUpdate(tx, userID, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return storeError(err)
	}

	if record.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	if err := record.Revoke(now, nil); err != nil {
		return err
	}
	if err := s.tokenRepo.MarkRevoked(tx, record); err != nil {
		return storeError(err)
	}
	if err := tx.Commit(); err != nil {
		return storeError(err)
	}

	logger.Log.WithField("user_id", userID).Info("User logged out")
	return nil
}

// LogoutAll revokes every currently active refresh token for the user.
// Safe to call with zero active records.
func (s *AuthService) LogoutAll(ctx context.Context, userID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(err)
	}
	defer tx.Rollback()

	revoked, err := s.tokenRepo.RevokeAllForUser(tx, userID, time.Now().UTC())
	if err != nil {
		return storeError(err)
	}
	if err := tx.Commit(); err != nil {
		return storeError(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":        userID,
		"tokens_revoked": revoked,
	}).Info("All sessions revoked for user")
	return nil
}

// escalateReuse handles presentation of a no-longer-active token: all of
// the user's active sessions are terminated and the mass revocation is
// committed even though the refresh itself fails. This is the one failure
// path that writes.
func (s *AuthService) escalateReuse(tx *sql.Tx, record *model.RefreshToken, now time.Time) error {
	revoked, err := s.tokenRepo.RevokeAllForUser(tx, record.UserID, now)
	if err != nil {
		return storeError(err)
	}
	if err := tx.Commit(); err != nil {
		return storeError(err)
	}

	// Loud internally, silent externally: the caller sees the same failure
	// as any invalid refresh token.
	logger.Log.WithFields(logrus.Fields{
		"user_id":        record.UserID,
		"token_id":       record.ID,
		"tokens_revoked": revoked,
	}).Error("Refresh token reuse detected, all sessions revoked")

	return ErrReuseDetected
}

func (s *AuthService) replayFromCache(ctx context.Context, oldHash string) *TokenPair {
	if s.cache == nil || s.graceWindow <= 0 {
		return nil
	}
	data, err := s.cache.Get(ctx, replayCacheKey(oldHash)).Result()
	if err != nil {
		return nil
	}
	pair := &TokenPair{}
	if err := json.Unmarshal([]byte(data), pair); err != nil {
		return nil
	}
	return pair
}

func (s *AuthService) cacheRotatedResult(ctx context.Context, oldHash string, pair *TokenPair) {
	if s.cache == nil || s.graceWindow <= 0 {
		return
	}
	data, err := json.Marshal(pair)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, replayCacheKey(oldHash), data, s.graceWindow).Err(); err != nil {
		logger.Log.WithError(err).Warn("Failed to cache rotated refresh result")
	}
}

func replayCacheKey(oldHash string) string {
	return fmt.Sprintf("refresh_replay:%s", oldHash)
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
