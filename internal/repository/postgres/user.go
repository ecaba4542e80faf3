package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/usersvc/internal/apperrors"
	"github.com/nkiryanov/usersvc/internal/models"
	"github.com/nkiryanov/usersvc/internal/repository"
)

// Connection pool. *pgxpool.Pool satisfies it
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

type UserRepo struct {
	pool Pool
	mode repository.IdentityMode
}

var _ repository.UserRepo = (*UserRepo)(nil)

func NewUserRepo(pool Pool, mode repository.IdentityMode) *UserRepo {
	if mode == "" {
		mode = repository.IdentityReturning
	}

	return &UserRepo{pool: pool, mode: mode}
}

const createUserReturning = `-- name: CreateUserReturning
INSERT INTO users (username)
VALUES ($1)
RETURNING id, username
`

const createUser = `-- name: CreateUser
INSERT INTO users (username)
VALUES ($1)
`

const getLastUser = `-- name: GetLastUser
SELECT id, username FROM users
ORDER BY id DESC
LIMIT 1
`

func (r *UserRepo) CreateUser(ctx context.Context, username string) (models.User, error) {
	var user models.User

	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			var err error
			user, err = r.insert(ctx, tx, username)
			return err
		})
	})

	return user, err
}

func (r *UserRepo) insert(ctx context.Context, tx pgx.Tx, username string) (models.User, error) {
	switch r.mode {
	case repository.IdentityRequery:
		if _, err := tx.Exec(ctx, createUser, username); err != nil {
			return models.User{}, err
		}

		// Another transaction may commit its row between the insert and this select
		rows, _ := tx.Query(ctx, getLastUser)
		return pgx.CollectOneRow(rows, rowToUser)

	default:
		rows, _ := tx.Query(ctx, createUserReturning, username)
		return pgx.CollectOneRow(rows, rowToUser)
	}
}

const getUserByID = `-- name: GetUserByID
SELECT id, username FROM users
WHERE id = $1
`

const getUserByUsername = `-- name: GetUserByUsername
SELECT id, username FROM users
WHERE username = $1
`

func (r *UserRepo) FindUser(ctx context.Context, key models.UserKey) (models.User, error) {
	var (
		query string
		arg   any
	)

	switch k := key.(type) {
	case models.ByID:
		query, arg = getUserByID, int64(k)
	case models.ByUsername:
		query, arg = getUserByUsername, string(k)
	default:
		return models.User{}, apperrors.NewDatabaseError(fmt.Errorf("unsupported user key %T", key))
	}

	var user models.User
	err := r.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, _ := conn.Query(ctx, query, arg)

		var err error
		user, err = pgx.CollectOneRow(rows, rowToUser)
		return err
	})

	return user, err
}

// withConn acquires one connection for fn and releases it on every exit path.
// Returned error is classified
func (r *UserRepo) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Release()

	return classify(fn(conn))
}

func classify(err error) error {
	var pgErr *pgconn.PgError

	switch {
	case err == nil:
		return nil
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return apperrors.ErrRecordAlreadyExists
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrRecordNotFound
	default:
		return apperrors.NewDatabaseError(err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username)
	return u, err
}
