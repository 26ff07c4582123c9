package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	Name         string
	PasswordHash string
}

// Session is one recorded study interval. StartedAt is the only temporal anchor used by stats.
type Session struct {
	ID        SessionID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Subject   string    `json:"subject"`
	Minutes   int       `json:"minutes"`
	StartedAt time.Time `json:"started_at"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// False only for records held on the client that the remote store hasn't confirmed yet
	Synced bool `json:"synced"`
}

// Payload strips local-only fields, leaving what the remote store accepts on insert.
func (s *Session) Payload() SessionPayload {
	return SessionPayload{
		UserID:    s.UserID,
		Subject:   s.Subject,
		Minutes:   s.Minutes,
		StartedAt: s.StartedAt,
		Note:      s.Note,
	}
}

type SessionPayload struct {
	UserID    uuid.UUID
	Subject   string
	Minutes   int
	StartedAt time.Time
	Note      string
}

// SessionForm is what the user submits when adding or editing a session.
type SessionForm struct {
	Subject   string    `validate:"required,nonblank,pgtext,max=200"`
	Minutes   int       `validate:"min=1,max=1440"`
	StartedAt time.Time `validate:"required"`
	Note      string    `validate:"pgtext,max=2000"`
}

func (f SessionForm) Payload(uid uuid.UUID) SessionPayload {
	return SessionPayload{
		UserID:    uid,
		Subject:   f.Subject,
		Minutes:   f.Minutes,
		StartedAt: f.StartedAt,
		Note:      f.Note,
	}
}

type DailyStats struct {
	Date         string         `json:"date" yaml:"date"`
	TotalMinutes int            `json:"total_minutes" yaml:"total_minutes"`
	Subjects     map[string]int `json:"subjects" yaml:"subjects"`
}

type SubjectStats struct {
	Subject      string  `json:"subject" yaml:"subject"`
	TotalMinutes int     `json:"total_minutes" yaml:"total_minutes"`
	Percentage   float64 `json:"percentage" yaml:"percentage"`
}

type OverallStats struct {
	TotalMinutes         int    `json:"total_minutes" yaml:"total_minutes"`
	TotalSessions        int    `json:"total_sessions" yaml:"total_sessions"`
	AverageMinutesPerDay int    `json:"average_minutes_per_day" yaml:"average_minutes_per_day"`
	ConsecutiveDays      int    `json:"consecutive_days" yaml:"consecutive_days"`
	FavoriteSubject      string `json:"favorite_subject" yaml:"favorite_subject"`
}

// StatsReport bundles all aggregates computed from a single snapshot of sessions.
type StatsReport struct {
	Overall  OverallStats   `json:"overall" yaml:"overall"`
	Subjects []SubjectStats `json:"subjects" yaml:"subjects"`
	Daily    []DailyStats   `json:"daily" yaml:"daily"`
}
