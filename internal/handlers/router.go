package handlers

import (
	"net/http"

	"github.com/nkiryanov/usersvc/internal/executor"
	"github.com/nkiryanov/usersvc/internal/handlers/middleware"
	"github.com/nkiryanov/usersvc/internal/logger"
	"github.com/nkiryanov/usersvc/internal/repository"
)

type RouterConfig struct {
	// Requests per second allowed for the whole server, 0 disables limit
	RateLimit float64
	RateBurst int
}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	c RouterConfig,
	userRepo repository.UserRepo,
	exec *executor.Executor,
	logger logger.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /users", handleCreateUser(userRepo, exec, logger))
	mux.Handle("GET /users/find/{name}", handleFindUser(userRepo, exec, logger))
	mux.Handle("GET /users/{id}", handleGetUser(userRepo, exec, logger))

	handler := chain(mux,
		middleware.RequestID,
		middleware.LoggerMiddleware(logger),
		middleware.Recoverer(logger),
		middleware.RateLimit(c.RateLimit, c.RateBurst),
	)

	return handler
}
