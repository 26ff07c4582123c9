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

type SessionsRepository struct {
	conn PgConnection
}

func NewSessionsRepo(cfg DBConfig) *SessionsRepository {
	return &SessionsRepository{
		conn: NewPool(cfg),
	}
}

func NewSessionsRepoWithConn(conn PgConnection) *SessionsRepository {
	mustPing(conn, "sessions repository")
	return &SessionsRepository{
		conn: conn,
	}
}

const insertSessionQuery = `INSERT INTO study_sessions (user_id, subject, minutes, started_at, note)
	VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at;`

func (sr *SessionsRepository) Create(ctx context.Context, payload entity.SessionPayload) (*entity.Session, error) {
	session, err := insertSession(ctx, sr.conn, payload)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (sr *SessionsRepository) CreateBatch(ctx context.Context, payloads []entity.SessionPayload) ([]entity.Session, error) {
	tx, err := sr.conn.Begin(ctx)
	if err != nil {
		return nil, errors.New("beginning transaction error: " + err.Error())
	}
	result := make([]entity.Session, 0, len(payloads))
	for _, p := range payloads {
		session, err := insertSession(ctx, tx, p)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
		result = append(result, *session)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, errors.New("committing batch error: " + err.Error())
	}
	return result, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertSession(ctx context.Context, q rowQuerier, payload entity.SessionPayload) (*entity.Session, error) {
	var id uuid.UUID
	session := entity.Session{
		UserID:    payload.UserID,
		Subject:   payload.Subject,
		Minutes:   payload.Minutes,
		StartedAt: payload.StartedAt,
		Note:      payload.Note,
		Synced:    true,
	}
	row := q.QueryRow(ctx, insertSessionQuery,
		payload.UserID,
		payload.Subject,
		payload.Minutes,
		payload.StartedAt,
		payload.Note,
	)
	if err := row.Scan(&id, &session.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// FK violation
			case "23503":
				return nil, errorvalues.ErrOwnerNotFound
			// Check violation
			case "23514":
				return nil, errorvalues.ErrInvalidSession
			}
		}
		return nil, errors.New("creating session db error: " + err.Error())
	}
	session.ID = entity.ConfirmedID(id.String())
	return &session, nil
}

func (sr *SessionsRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	session := entity.Session{
		ID:     entity.ConfirmedID(id.String()),
		Synced: true,
	}
	row := sr.conn.QueryRow(ctx, `SELECT user_id, subject, minutes, started_at, note, created_at FROM study_sessions WHERE id = $1;`, id)
	err := row.Scan(&session.UserID, &session.Subject, &session.Minutes, &session.StartedAt, &session.Note, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrSessionNotFound
		}
		return nil, errors.New("getting session by id error: " + err.Error())
	}
	return &session, nil
}

func (sr *SessionsRepository) ListByUserID(ctx context.Context, uid uuid.UUID) ([]entity.Session, error) {
	sessions := make([]entity.Session, 0)
	rows, err := sr.conn.Query(ctx, `SELECT id, user_id, subject, minutes, started_at, note, created_at
		FROM study_sessions WHERE user_id = $1 ORDER BY started_at DESC;`, uid)
	if err != nil {
		return nil, errors.New("getting sessions by uid error: " + err.Error())
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		s := entity.Session{Synced: true}
		err = rows.Scan(&id, &s.UserID, &s.Subject, &s.Minutes, &s.StartedAt, &s.Note, &s.CreatedAt)
		if err != nil {
			return nil, errors.New("unmarshalling session error: " + err.Error())
		}
		s.ID = entity.ConfirmedID(id.String())
		sessions = append(sessions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.New("unexpected error after scanning: " + err.Error())
	}
	return sessions, nil
}

func (sr *SessionsRepository) Update(ctx context.Context, id uuid.UUID, payload entity.SessionPayload) (*entity.Session, error) {
	session := entity.Session{
		ID:        entity.ConfirmedID(id.String()),
		Subject:   payload.Subject,
		Minutes:   payload.Minutes,
		StartedAt: payload.StartedAt,
		Note:      payload.Note,
		Synced:    true,
	}
	row := sr.conn.QueryRow(ctx, `UPDATE study_sessions SET subject = $1, minutes = $2, started_at = $3, note = $4
		WHERE id = $5 RETURNING user_id, created_at;`,
		payload.Subject, payload.Minutes, payload.StartedAt, payload.Note, id,
	)
	if err := row.Scan(&session.UserID, &session.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrSessionNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return nil, errorvalues.ErrInvalidSession
		}
		return nil, errors.New("error updating session: " + err.Error())
	}
	return &session, nil
}

func (sr *SessionsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := sr.conn.Exec(ctx, `DELETE FROM study_sessions WHERE id = $1;`, id)
	if err != nil {
		return errors.New("error deleting session: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrSessionNotFound
	}
	return nil
}
