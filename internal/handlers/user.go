package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nkiryanov/usersvc/internal/apperrors"
	"github.com/nkiryanov/usersvc/internal/executor"
	"github.com/nkiryanov/usersvc/internal/handlers/middleware"
	"github.com/nkiryanov/usersvc/internal/handlers/render"
	"github.com/nkiryanov/usersvc/internal/logger"
	"github.com/nkiryanov/usersvc/internal/models"
	"github.com/nkiryanov/usersvc/internal/repository"
)

func handleCreateUser(repo repository.UserRepo, exec *executor.Executor, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			l.Debug("Invalid create user request", "error", err)
			return
		}

		f := executor.Submit(r.Context(), exec, func(ctx context.Context) (models.User, error) {
			return repo.CreateUser(ctx, data.Username)
		})
		user, err := f.Wait(r.Context())

		respond(w, r, l, user, err)
	})
}

func handleFindUser(repo repository.UserRepo, exec *executor.Executor, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := models.ByUsername(r.PathValue("name"))

		f := executor.Submit(r.Context(), exec, func(ctx context.Context) (models.User, error) {
			return repo.FindUser(ctx, key)
		})
		user, err := f.Wait(r.Context())

		respond(w, r, l, user, err)
	})
}

func handleGetUser(repo repository.UserRepo, exec *executor.Executor, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			render.Error(w, "Invalid user id", http.StatusBadRequest)
			return
		}
		key := models.ByID(id)

		f := executor.Submit(r.Context(), exec, func(ctx context.Context) (models.User, error) {
			return repo.FindUser(ctx, key)
		})
		user, err := f.Wait(r.Context())

		respond(w, r, l, user, err)
	})
}

// respond renders user or classified error.
// Server side faults are logged with their cause, expected outcomes are logged at debug level
func respond(w http.ResponseWriter, r *http.Request, l logger.Logger, user models.User, err error) {
	if err == nil {
		render.JSON(w, user)
		return
	}

	err = apperrors.Classify(err)
	kind := apperrors.KindOf(err)
	args := []any{
		"kind", kind.String(),
		"error", err,
		"uri", r.RequestURI,
		"request_id", middleware.RequestIDFromContext(r.Context()),
	}

	switch kind {
	case apperrors.KindDatabaseError:
		l.Error("Database error", args...)
	case apperrors.KindOperationCanceled:
		l.Warn("Operation canceled", args...)
	default:
		l.Debug("Request not fulfilled", args...)
	}

	render.AppError(w, err)
}
