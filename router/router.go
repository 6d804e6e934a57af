package router

import (
	"net/http"

	"go-task-api/handler"
	"go-task-api/service"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

func NewRouter(authHandler *handler.AuthHandler, tokenService *service.TokenService) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handler.HealthCheck)
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	mux.Handle("/register", handler.ErrorHandlingMiddleware(authHandler.Register))
	mux.Handle("/login", handler.ErrorHandlingMiddleware(authHandler.Login))
	mux.Handle("/api/token/refresh", handler.ErrorHandlingMiddleware(authHandler.Refresh))

	// Routes below require a valid access token.
	authMiddleware := handler.AuthMiddleware(tokenService)
	mux.Handle("/api/logout", authMiddleware(handler.ErrorHandlingMiddleware(authHandler.Logout)))
	mux.Handle("/api/logout-all", authMiddleware(handler.ErrorHandlingMiddleware(authHandler.LogoutAll)))

	return mux
}
