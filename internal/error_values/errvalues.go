package errorvalues

import "errors"

var (
	ErrUserExists       = errors.New("such user already exists")
	ErrUserNotFound     = errors.New("user doesn't exists")
	ErrWrongCredentials = errors.New("wrong name or password")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidUserData  = errors.New("invalid user name or password format")
)

var (
	ErrSessionNotFound = errors.New("study session not found")
	ErrWrongOwner      = errors.New("study session belongs to another user")
	ErrOwnerNotFound   = errors.New("session owner doesn't exist")
	ErrInvalidSession  = errors.New("invalid study session")
)

// Client side
var (
	ErrUnauthenticated   = errors.New("login required")
	ErrPendingSession    = errors.New("session is waiting for sync")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)
