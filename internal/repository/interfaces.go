package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limbo/studytrack/pkg/entity"
)

type UsersRepositoryI interface {
	// Creates new user in database and returns its id
	Create(ctx context.Context, user *entity.User) (uuid.UUID, error)
	// Looks up user by name. Can be used for login
	FindByName(ctx context.Context, name string) (*entity.User, error)
	// Looks up user by uid. Can be used for authorization middleware
	FindByID(ctx context.Context, uid uuid.UUID) (*entity.User, error)
	// Deletes user together with his sessions
	Delete(ctx context.Context, uid uuid.UUID) error
}

type SessionsRepositoryI interface {
	// Inserts one study session. Returned session carries id and created_at assigned by db
	Create(ctx context.Context, payload entity.SessionPayload) (*entity.Session, error)
	// Inserts all sessions in one transaction. Either all of them are stored or none
	CreateBatch(ctx context.Context, payloads []entity.SessionPayload) ([]entity.Session, error)
	// Searches session with given id
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	// Lists every session owned by user, most recent started_at first
	ListByUserID(ctx context.Context, uid uuid.UUID) ([]entity.Session, error)
	// Overwrites subject, minutes, started_at and note. Returns updated row
	Update(ctx context.Context, id uuid.UUID, payload entity.SessionPayload) (*entity.Session, error)
	// Deletes session with id
	Delete(ctx context.Context, id uuid.UUID) error
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
