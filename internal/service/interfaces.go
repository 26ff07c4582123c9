package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/studytrack/pkg/entity"
)

type RegisterRequest struct {
	Name     string `validate:"required,alphanum_underscore,min=3,max=100"`
	Password string `validate:"required,min=8,max=72"`
}

// SessionRequest is the user-editable part of a study session.
type SessionRequest struct {
	Subject   string `validate:"required,nonblank,pgtext,max=200"`
	Minutes   int    `validate:"min=1,max=1440"`
	StartedAt time.Time
	Note      string `validate:"pgtext,max=2000"`
}

type UserServiceI interface {
	// Validates user's credentials, creates new row in database. Returns user's data with ID
	Register(ctx context.Context, req *RegisterRequest) (*entity.User, error)
	// Compares given credentials. If ok, give back user's data with ID.
	Login(ctx context.Context, name, password string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	DeleteAccount(ctx context.Context, id uuid.UUID, password string) error
}

type SessionsServiceI interface {
	CreateSession(ctx context.Context, uid uuid.UUID, req *SessionRequest) (*entity.Session, error)
	// Stores all sessions or none of them
	CreateSessions(ctx context.Context, uid uuid.UUID, reqs []SessionRequest) ([]entity.Session, error)
	// Lists user's sessions, most recent first
	ListSessions(ctx context.Context, uid uuid.UUID) ([]entity.Session, error)
	UpdateSession(ctx context.Context, id, uid uuid.UUID, req *SessionRequest) (*entity.Session, error)
	DeleteSession(ctx context.Context, id, uid uuid.UUID) error
	// Aggregates user's sessions. days is the length of the daily breakdown
	Stats(ctx context.Context, uid uuid.UUID, days int, loc *time.Location) (*entity.StatsReport, error)
}
