package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/repository"
	"github.com/limbo/studytrack/internal/stats"
	"github.com/limbo/studytrack/pkg/entity"
)

type SessionsService struct {
	repo repository.SessionsRepositoryI
	now  func() time.Time
}

func NewSessionsService(sessionsRepo repository.SessionsRepositoryI) *SessionsService {
	if sessionsRepo == nil {
		log.Fatal("provided nil sessionsRepo")
	}
	return &SessionsService{
		repo: sessionsRepo,
		now:  time.Now,
	}
}

// WithClock replaces the clock used for "today" in stats.
func (ss *SessionsService) WithClock(now func() time.Time) *SessionsService {
	ss.now = now
	return ss
}

func (req *SessionRequest) payload(uid uuid.UUID) entity.SessionPayload {
	return entity.SessionPayload{
		UserID:    uid,
		Subject:   req.Subject,
		Minutes:   req.Minutes,
		StartedAt: req.StartedAt,
		Note:      req.Note,
	}
}

func (ss *SessionsService) CreateSession(ctx context.Context, uid uuid.UUID, req *SessionRequest) (*entity.Session, error) {
	if err := validateSession(req); err != nil {
		return nil, err
	}
	session, err := ss.repo.Create(ctx, req.payload(uid))
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrOwnerNotFound):
			return nil, errorvalues.ErrUserNotFound
		case errors.Is(err, errorvalues.ErrInvalidSession):
			return nil, err
		}
		return nil, errors.New("sessions repository error: " + err.Error())
	}
	return session, nil
}

func (ss *SessionsService) CreateSessions(ctx context.Context, uid uuid.UUID, reqs []SessionRequest) ([]entity.Session, error) {
	if len(reqs) == 0 {
		return []entity.Session{}, nil
	}
	payloads := make([]entity.SessionPayload, 0, len(reqs))
	for i := range reqs {
		if err := validateSession(&reqs[i]); err != nil {
			return nil, err
		}
		payloads = append(payloads, reqs[i].payload(uid))
	}
	sessions, err := ss.repo.CreateBatch(ctx, payloads)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrOwnerNotFound):
			return nil, errorvalues.ErrUserNotFound
		case errors.Is(err, errorvalues.ErrInvalidSession):
			return nil, err
		}
		return nil, errors.New("sessions repository error: " + err.Error())
	}
	return sessions, nil
}

func (ss *SessionsService) ListSessions(ctx context.Context, uid uuid.UUID) ([]entity.Session, error) {
	sessions, err := ss.repo.ListByUserID(ctx, uid)
	if err != nil {
		return nil, errors.New("sessions repository error: " + err.Error())
	}
	return sessions, nil
}

func (ss *SessionsService) getOwned(ctx context.Context, id, uid uuid.UUID) (*entity.Session, error) {
	session, err := ss.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrSessionNotFound) {
			return nil, err
		}
		return nil, errors.New("sessions repository error: " + err.Error())
	}
	if session.UserID != uid {
		return nil, errorvalues.ErrWrongOwner
	}
	return session, nil
}

func (ss *SessionsService) UpdateSession(ctx context.Context, id, uid uuid.UUID, req *SessionRequest) (*entity.Session, error) {
	if err := validateSession(req); err != nil {
		return nil, err
	}
	if _, err := ss.getOwned(ctx, id, uid); err != nil {
		return nil, err
	}
	session, err := ss.repo.Update(ctx, id, req.payload(uid))
	if err != nil {
		if errors.Is(err, errorvalues.ErrSessionNotFound) || errors.Is(err, errorvalues.ErrInvalidSession) {
			return nil, err
		}
		return nil, errors.New("sessions repository error: " + err.Error())
	}
	return session, nil
}

func (ss *SessionsService) DeleteSession(ctx context.Context, id, uid uuid.UUID) error {
	if _, err := ss.getOwned(ctx, id, uid); err != nil {
		return err
	}
	err := ss.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrSessionNotFound) {
			return err
		}
		return errors.New("sessions repository error: " + err.Error())
	}
	return nil
}

func (ss *SessionsService) Stats(ctx context.Context, uid uuid.UUID, days int, loc *time.Location) (*entity.StatsReport, error) {
	sessions, err := ss.repo.ListByUserID(ctx, uid)
	if err != nil {
		return nil, errors.New("sessions repository error: " + err.Error())
	}
	if loc == nil {
		loc = time.Local
	}
	report := stats.Report(sessions, days, ss.now(), loc)
	return &report, nil
}
