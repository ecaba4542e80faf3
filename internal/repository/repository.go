package repository

import (
	"context"
	"fmt"

	"github.com/nkiryanov/usersvc/internal/models"
)

// User repository interface
// Every call uses exactly one pooled connection and returns classified errors only (see apperrors)
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrRecordAlreadyExists
	CreateUser(ctx context.Context, username string) (models.User, error)

	// Find user by username or id
	// If user not found must return apperrors.ErrRecordNotFound
	FindUser(ctx context.Context, key models.UserKey) (models.User, error)
}

// IdentityMode defines how CreateUser learns the id of the just inserted row
type IdentityMode string

const (
	// Insert returns generated row atomically (INSERT ... RETURNING)
	IdentityReturning IdentityMode = "returning"

	// Insert, then select the row with max id in the same transaction.
	// Kept for compatibility: concurrent creates may observe a row inserted by another call.
	IdentityRequery IdentityMode = "requery"
)

func ParseIdentityMode(s string) (IdentityMode, error) {
	switch m := IdentityMode(s); m {
	case IdentityReturning, IdentityRequery:
		return m, nil
	default:
		return "", fmt.Errorf("unknown identity mode %q, expected %q or %q", s, IdentityReturning, IdentityRequery)
	}
}
