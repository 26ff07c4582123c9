// Package dto holds the JSON bodies exchanged between the studytrack API and its clients.
package dto

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/studytrack/pkg/entity"
)

type AuthRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type AuthResponse struct {
	UserID string `json:"uid"`
	Token  string `json:"token,omitempty"`
}

// SessionRequest is the body of create and update calls. UserID is optional; when set it
// must match the authenticated user.
type SessionRequest struct {
	UserID    string    `json:"user_id,omitempty"`
	Subject   string    `json:"subject"`
	Minutes   int       `json:"minutes"`
	StartedAt time.Time `json:"started_at"`
	Note      string    `json:"note,omitempty"`
}

type BatchRequest struct {
	Sessions []SessionRequest `json:"sessions"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Subject   string    `json:"subject"`
	Minutes   int       `json:"minutes"`
	StartedAt time.Time `json:"started_at"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionsResponse struct {
	UserID   string    `json:"uid"`
	Sessions []Session `json:"sessions"`
}

func FromPayload(p entity.SessionPayload) SessionRequest {
	req := SessionRequest{
		Subject:   p.Subject,
		Minutes:   p.Minutes,
		StartedAt: p.StartedAt.UTC(),
		Note:      p.Note,
	}
	if p.UserID != uuid.Nil {
		req.UserID = p.UserID.String()
	}
	return req
}

func FromSession(s *entity.Session) Session {
	return Session{
		ID:        s.ID.Value(),
		UserID:    s.UserID.String(),
		Subject:   s.Subject,
		Minutes:   s.Minutes,
		StartedAt: s.StartedAt,
		Note:      s.Note,
		CreatedAt: s.CreatedAt,
	}
}

func FromSessions(sessions []entity.Session) []Session {
	result := make([]Session, 0, len(sessions))
	for i := range sessions {
		result = append(result, FromSession(&sessions[i]))
	}
	return result
}

// ToEntity converts a server record into a confirmed, synced session.
func (s Session) ToEntity() (entity.Session, error) {
	if s.ID == "" {
		return entity.Session{}, errors.New("session without id")
	}
	uid, err := uuid.Parse(s.UserID)
	if err != nil {
		return entity.Session{}, errors.New("invalid user id in session: " + err.Error())
	}
	return entity.Session{
		ID:        entity.ConfirmedID(s.ID),
		UserID:    uid,
		Subject:   s.Subject,
		Minutes:   s.Minutes,
		StartedAt: s.StartedAt,
		Note:      s.Note,
		CreatedAt: s.CreatedAt,
		Synced:    true,
	}, nil
}

func ToEntities(sessions []Session) ([]entity.Session, error) {
	result := make([]entity.Session, 0, len(sessions))
	for _, s := range sessions {
		e, err := s.ToEntity()
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}
