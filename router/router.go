package router

import (
	"go-auth-api/handler"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "go-auth-api/docs"
)

// Limiters groups the three rate limit policies applied to the route table.
type Limiters struct {
	API      *handler.RateLimiter
	Auth     *handler.RateLimiter
	Register *handler.RateLimiter
}

// NewRouter builds the full middleware chain: CORS and request logging on the
// outside, the general API limiter over the whole route table, the stricter
// auth and register limiters stacked on their routes, authentication on
// protected routes, and the error handling wrapper closest to each handler.
func NewRouter(authHandler *handler.AuthHandler, authMiddleware func(http.Handler) http.Handler, limiters Limiters) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /swagger/", httpSwagger.Handler())

	mux.Handle("POST /register",
		limiters.Register.Middleware(handler.ErrorHandlingMiddleware(authHandler.Register)))
	mux.Handle("POST /login",
		limiters.Auth.Middleware(handler.ErrorHandlingMiddleware(authHandler.Login)))
	mux.Handle("POST /refresh",
		limiters.Auth.Middleware(handler.ErrorHandlingMiddleware(authHandler.Refresh)))
	mux.Handle("POST /logout",
		handler.ErrorHandlingMiddleware(authHandler.Logout))

	mux.Handle("GET /me",
		authMiddleware(handler.ErrorHandlingMiddleware(authHandler.Me)))

	return handler.CORS(handler.RequestLogger(limiters.API.Middleware(mux)))
}
