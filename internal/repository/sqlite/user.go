package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nkiryanov/usersvc/internal/apperrors"
	"github.com/nkiryanov/usersvc/internal/models"
	"github.com/nkiryanov/usersvc/internal/repository"
)

// Connection pool. *sql.DB satisfies it: Conn blocks while all MaxOpenConns connections are in use
type Pool interface {
	Conn(ctx context.Context) (*sql.Conn, error)
}

// UserRepo implements repository.UserRepo using SQLite as the storage backend.
type UserRepo struct {
	pool Pool
	mode repository.IdentityMode

	// sqlite allows a single writer, concurrent write transactions would fail with SQLITE_BUSY
	writeLock *sync.Mutex
}

var _ repository.UserRepo = (*UserRepo)(nil)

// NewUserRepo creates repository over pool.
// Writes are serialized inside the process, so the requery identity mode is safe with a single service instance.
func NewUserRepo(pool Pool, mode repository.IdentityMode) *UserRepo {
	if mode == "" {
		mode = repository.IdentityReturning
	}

	return &UserRepo{
		pool:      pool,
		mode:      mode,
		writeLock: new(sync.Mutex),
	}
}

// CreateUser implements repository.UserRepo.CreateUser.
func (r *UserRepo) CreateUser(ctx context.Context, username string) (models.User, error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	var user models.User

	err := r.withConn(ctx, func(conn *sql.Conn) (err error) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}

			switch err {
			case nil:
				err = tx.Commit()
			default:
				_ = tx.Rollback()
			}
		}()

		user, err = r.insert(ctx, tx, username)
		return err
	})

	return user, err
}

func (r *UserRepo) insert(ctx context.Context, tx *sql.Tx, username string) (models.User, error) {
	var u models.User

	switch r.mode {
	case repository.IdentityRequery:
		if _, err := tx.ExecContext(ctx, "INSERT INTO users (username) VALUES (?)", username); err != nil {
			return u, err
		}

		err := tx.QueryRowContext(ctx, "SELECT id, username FROM users ORDER BY id DESC LIMIT 1").
			Scan(&u.ID, &u.Username)
		return u, err

	default:
		err := tx.QueryRowContext(ctx, "INSERT INTO users (username) VALUES (?) RETURNING id, username", username).
			Scan(&u.ID, &u.Username)
		return u, err
	}
}

// FindUser implements repository.UserRepo.FindUser.
func (r *UserRepo) FindUser(ctx context.Context, key models.UserKey) (models.User, error) {
	var (
		query string
		arg   any
	)

	switch k := key.(type) {
	case models.ByID:
		query, arg = "SELECT id, username FROM users WHERE id = ?", int64(k)
	case models.ByUsername:
		query, arg = "SELECT id, username FROM users WHERE username = ?", string(k)
	default:
		return models.User{}, apperrors.NewDatabaseError(fmt.Errorf("unsupported user key %T", key))
	}

	var u models.User
	err := r.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username)
	})

	return u, err
}

// withConn takes one connection from the pool for fn and returns it on every exit path.
// Returned error is classified
func (r *UserRepo) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := r.pool.Conn(ctx)
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close() // nolint:errcheck

	return classify(fn(conn))
}

func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrRecordNotFound
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			fallthrough
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return apperrors.ErrRecordAlreadyExists
		}
	}

	return apperrors.NewDatabaseError(err)
}
