package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/pkg/entity"
)

const (
	insertUserQuery     = `INSERT INTO users (name, password_hash) VALUES ($1, $2) RETURNING id;`
	selectUserByName    = `SELECT id, name, password_hash FROM users WHERE name = $1;`
	selectUserByID      = `SELECT id, name, password_hash FROM users WHERE id = $1;`
	deleteUserQuery     = `DELETE FROM users WHERE id = $1;`
	uniqueViolationCode = "23505"
)

type UsersRepository struct {
	conn PgConnection
}

func NewUsersRepo(cfg DBConfig) *UsersRepository {
	return NewUsersRepoWithConn(NewPool(cfg))
}

func NewUsersRepoWithConn(conn PgConnection) *UsersRepository {
	mustPing(conn, "users repository")
	return &UsersRepository{conn: conn}
}

// Create returns the id the db assigned. A taken name gives ErrUserExists.
func (ur *UsersRepository) Create(ctx context.Context, user *entity.User) (uuid.UUID, error) {
	if user == nil {
		return uuid.Nil, errors.New("user is nil")
	}
	var id uuid.UUID
	err := ur.conn.QueryRow(ctx, insertUserQuery, user.Name, user.PasswordHash).Scan(&id)
	if err == nil {
		return id, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return uuid.Nil, errorvalues.ErrUserExists
	}
	return uuid.Nil, errors.New("inserting user error: " + err.Error())
}

func (ur *UsersRepository) FindByName(ctx context.Context, name string) (*entity.User, error) {
	return ur.findOne(ctx, selectUserByName, name)
}

func (ur *UsersRepository) FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error) {
	return ur.findOne(ctx, selectUserByID, uid)
}

func (ur *UsersRepository) findOne(ctx context.Context, query string, key any) (*entity.User, error) {
	user := new(entity.User)
	err := ur.conn.QueryRow(ctx, query, key).Scan(&user.ID, &user.Name, &user.PasswordHash)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errorvalues.ErrUserNotFound
	default:
		return nil, errors.New("looking up user error: " + err.Error())
	}
}

// Delete removes the account. Its study sessions go with it through the foreign key cascade.
func (ur *UsersRepository) Delete(ctx context.Context, uid uuid.UUID) error {
	tag, err := ur.conn.Exec(ctx, deleteUserQuery, uid)
	if err != nil {
		return errors.New("deleting user error: " + err.Error())
	}
	if tag.RowsAffected() == 0 {
		return errorvalues.ErrUserNotFound
	}
	return nil
}
