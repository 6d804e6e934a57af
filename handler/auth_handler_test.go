// file: handler/auth_handler_test.go

package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-task-api/config"
	"go-task-api/handler"
	"go-task-api/logger"
	"go-task-api/model"
	"go-task-api/router"
	"go-task-api/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}
func (m *mockAuthService) Login(ctx context.Context, email, password string) (*service.TokenPair, error) {
	args := m.Called(email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TokenPair), args.Error(1)
}
func (m *mockAuthService) Refresh(ctx context.Context, refreshTokenPlain string) (*service.TokenPair, error) {
	args := m.Called(refreshTokenPlain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TokenPair), args.Error(1)
}
func (m *mockAuthService) Logout(ctx context.Context, userID int, refreshTokenPlain string) error {
	args := m.Called(userID, refreshTokenPlain)
	return args.Error(0)
}
func (m *mockAuthService) LogoutAll(ctx context.Context, userID int) error {
	args := m.Called(userID)
	return args.Error(0)
}

func testTokenService(t *testing.T) *service.TokenService {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.JWT.Issuer = "go-task-api-test"
	cfg.JWT.Audience = "go-task-api-test-clients"
	cfg.JWT.AccessTokenMinutes = 15
	cfg.JWT.RefreshTokenDays = 30
	cfg.TokenHash.Pepper = "test-pepper"

	tokenService, err := service.NewTokenService(cfg)
	assert.NoError(t, err)
	return tokenService
}

func setup(t *testing.T) (*mockAuthService, *service.TokenService, http.Handler) {
	t.Helper()
	logger.Init()
	mockSvc := new(mockAuthService)
	tokenService := testTokenService(t)
	r := router.NewRouter(handler.NewAuthHandler(mockSvc), tokenService)
	return mockSvc, tokenService, r
}

func doRequest(r http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockSvc, _, r := setup(t)
		pair := &service.TokenPair{
			AccessToken:      "access",
			RefreshToken:     "refresh",
			RefreshExpiresAt: time.Now().UTC().Add(30 * 24 * time.Hour),
		}
		mockSvc.On("Login", "user@x.com", "Str0ngP@ssw0rd!!").Return(pair, nil).Once()

		rr := doRequest(r, "POST", "/login", `{"email":"user@x.com","password":"Str0ngP@ssw0rd!!"}`, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"access_token":"access"`)
		assert.Contains(t, rr.Body.String(), `"refresh_token":"refresh"`)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		mockSvc, _, r := setup(t)
		mockSvc.On("Login", "user@x.com", "wrong-password").Return(nil, service.ErrInvalidCredentials).Once()

		rr := doRequest(r, "POST", "/login", `{"email":"user@x.com","password":"wrong-password"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid credentials")
	})

	t.Run("malformed payload", func(t *testing.T) {
		mockSvc, _, r := setup(t)

		rr := doRequest(r, "POST", "/login", `{"email":"not-an-email","password":"short"}`, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockSvc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockSvc, _, r := setup(t)
		pair := &service.TokenPair{AccessToken: "access2", RefreshToken: "refreshB"}
		mockSvc.On("Refresh", "refreshA").Return(pair, nil).Once()

		rr := doRequest(r, "POST", "/api/token/refresh", `{"refresh_token":"refreshA"}`, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"refresh_token":"refreshB"`)
	})

	t.Run("reuse detection is indistinguishable from an invalid token", func(t *testing.T) {
		mockSvc, _, r := setup(t)
		mockSvc.On("Refresh", "stolen-token").Return(nil, service.ErrReuseDetected).Once()
		mockSvc.On("Refresh", "garbage-value").Return(nil, service.ErrInvalidCredentials).Once()

		reuse := doRequest(r, "POST", "/api/token/refresh", `{"refresh_token":"stolen-token"}`, "")
		invalid := doRequest(r, "POST", "/api/token/refresh", `{"refresh_token":"garbage-value"}`, "")

		assert.Equal(t, http.StatusUnauthorized, reuse.Code)
		assert.Equal(t, http.StatusUnauthorized, invalid.Code)
		assert.Equal(t, invalid.Body.String(), reuse.Body.String(),
			"reuse detection must not be observable from the response")
	})

	t.Run("store unavailable", func(t *testing.T) {
		mockSvc, _, r := setup(t)
		mockSvc.On("Refresh", "refreshA").Return(nil, service.ErrStoreUnavailable).Once()

		rr := doRequest(r, "POST", "/api/token/refresh", `{"refresh_token":"refreshA"}`, "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		mockSvc, _, r := setup(t)

		rr := doRequest(r, "POST", "/api/token/refresh", `{}`, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockSvc.AssertNotCalled(t, "Refresh", mock.Anything)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Run("requires authentication", func(t *testing.T) {
		_, _, r := setup(t)

		rr := doRequest(r, "POST", "/api/logout", `{"refresh_token":"refreshA"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("revokes the caller's token", func(t *testing.T) {
		mockSvc, tokenService, r := setup(t)
		access, err := tokenService.GenerateAccessToken(&model.User{ID: 5, Email: "user@x.com"})
		assert.NoError(t, err)

		mockSvc.On("Logout", 5, "refreshA").Return(nil).Once()

		rr := doRequest(r, "POST", "/api/logout", `{"refresh_token":"refreshA"}`, access)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing body is a no-op logout", func(t *testing.T) {
		mockSvc, tokenService, r := setup(t)
		access, err := tokenService.GenerateAccessToken(&model.User{ID: 5})
		assert.NoError(t, err)

		mockSvc.On("Logout", 5, "").Return(nil).Once()

		rr := doRequest(r, "POST", "/api/logout", "", access)
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("rejects a tampered token", func(t *testing.T) {
		_, _, r := setup(t)

		rr := doRequest(r, "POST", "/api/logout", "", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAuthHandler_LogoutAll(t *testing.T) {
	mockSvc, tokenService, r := setup(t)
	access, err := tokenService.GenerateAccessToken(&model.User{ID: 5})
	assert.NoError(t, err)

	mockSvc.On("LogoutAll", 5).Return(nil).Once()

	rr := doRequest(r, "POST", "/api/logout-all", "", access)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mockSvc, _, r := setup(t)
		user := &model.User{ID: 9, Username: "newuser", Email: "new@x.com"}
		mockSvc.On("Register", mock.MatchedBy(func(req model.RegisterRequest) bool {
			return req.Email == "new@x.com"
		})).Return(user, nil).Once()

		rr := doRequest(r, "POST", "/register", `{"username":"newuser","email":"new@x.com","password":"Str0ngP@ssw0rd!!"}`, "")
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), `"email":"new@x.com"`)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mockSvc, _, r := setup(t)
		mockSvc.On("Register", mock.Anything).Return(nil, service.ErrEmailTaken).Once()

		rr := doRequest(r, "POST", "/register", `{"username":"newuser","email":"taken@x.com","password":"Str0ngP@ssw0rd!!"}`, "")
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}
