// file: service/token_service.go

package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-task-api/config"
	"go-task-api/logger"
	"go-task-api/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidInput marks malformed arguments (blank secret, missing user id).
// These are programmer errors at the call site, not security signals.
var ErrInvalidInput = errors.New("invalid input")

const (
	defaultAccessTokenMinutes = 15
	defaultRefreshTokenDays   = 30

	// refreshSecretBytes gives 512 bits of entropy per refresh secret.
	refreshSecretBytes = 64
)

// RefreshTokenDescriptor is the output of minting a refresh token: the
// plaintext handed to the client exactly once, the hash that gets stored,
// and the expiry shared by both.
type RefreshTokenDescriptor struct {
	Plain     string
	TokenHash string
	ExpiresAt time.Time
}

// TokenService mints access tokens (signed JWTs) and refresh secrets.
// It is stateless: all configuration is captured at construction and no
// per-token state is held.
type TokenService struct {
	secretKey          []byte
	issuer             string
	audience           string
	accessTokenMinutes int
	refreshTokenDays   int
	pepper             string
}

// NewTokenService builds a TokenService from the loaded configuration.
// Missing security-critical values are a startup error, never a
// per-request one.
func NewTokenService(cfg *config.Config) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenService{
		secretKey:          []byte(cfg.JWT.SecretKey),
		issuer:             cfg.JWT.Issuer,
		audience:           cfg.JWT.Audience,
		accessTokenMinutes: cfg.JWT.AccessTokenMinutes,
		refreshTokenDays:   cfg.JWT.RefreshTokenDays,
		pepper:             cfg.TokenHash.Pepper,
	}, nil
}

// GenerateAccessToken mints a short-lived signed JWT for the user, carrying
// the subject id, a unique token id (jti), issued-at and the user's email.
func (s *TokenService) GenerateAccessToken(user *model.User) (string, error) {
	if user == nil || user.ID <= 0 {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	minutes := s.accessTokenMinutes
	if minutes <= 0 {
		minutes = defaultAccessTokenMinutes
	}

	claims := &model.AppClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(minutes) * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to sign access token")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}

	return tokenString, nil
}

// ParseAccessToken validates the signature, expiry, issuer and audience of
// a previously minted access token and returns its claims.
func (s *TokenService) ParseAccessToken(tokenString string) (*model.AppClaims, error) {
	claims := &model.AppClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// NewRefreshSecret produces a cryptographically secure random refresh
// secret, URL-safe encoded. An unavailable RNG is a hard failure, never a
// silent truncation.
func (s *TokenService) NewRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefreshToken computes the one-way hash under which a refresh secret
// is stored and looked up. The server-side pepper is mixed into the input;
// it never travels with the hash.
func (s *TokenService) HashRefreshToken(plain string) (string, error) {
	if strings.TrimSpace(plain) == "" {
		return "", fmt.Errorf("%w: refresh token is required", ErrInvalidInput)
	}
	sum := sha256.Sum256([]byte(plain + ":" + s.pepper))
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// NewRefreshToken mints a fresh secret together with its storage hash and
// expiry. The plaintext in the descriptor is returned to the client once
// and never persisted.
func (s *TokenService) NewRefreshToken() (*RefreshTokenDescriptor, error) {
	plain, err := s.NewRefreshSecret()
	if err != nil {
		return nil, err
	}
	hash, err := s.HashRefreshToken(plain)
	if err != nil {
		return nil, err
	}

	days := s.refreshTokenDays
	if days <= 0 {
		days = defaultRefreshTokenDays
	}

	return &RefreshTokenDescriptor{
		Plain:     plain,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour),
	}, nil
}
