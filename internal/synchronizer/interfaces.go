package synchronizer

import (
	"context"

	"github.com/google/uuid"
	"github.com/limbo/studytrack/pkg/entity"
)

type RemoteStore interface {
	CreateSession(ctx context.Context, payload entity.SessionPayload) (*entity.Session, error)
	// Stores all payloads or none of them
	CreateSessions(ctx context.Context, payloads []entity.SessionPayload) ([]entity.Session, error)
	// Lists user's sessions, most recent StartedAt first
	ListSessions(ctx context.Context, userID uuid.UUID) ([]entity.Session, error)
	UpdateSession(ctx context.Context, id string, payload entity.SessionPayload) (*entity.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

type Identity interface {
	// Returns signed-in user, false when nobody is signed in
	CurrentUser() (uuid.UUID, bool)
}

// IdentityEvent is emitted by the identity provider on sign-in and sign-out.
type IdentityEvent struct {
	UserID   uuid.UUID
	SignedIn bool
}

// LocalQueue is the durable store of the last snapshot and of the writes made offline.
// Implementations never fail: unreadable data comes back empty.
type LocalQueue interface {
	SaveSnapshot(ctx context.Context, sessions []entity.Session)
	LoadSnapshot(ctx context.Context) []entity.Session
	SavePending(ctx context.Context, sessions []entity.Session)
	LoadPending(ctx context.Context) []entity.Session
	ClearPending(ctx context.Context)
}

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a user-visible message about the outcome of an operation.
type Notice struct {
	Level   Level
	Message string
	Err     error
}

type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) {
	f(n)
}
