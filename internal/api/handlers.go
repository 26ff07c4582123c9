package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/internal/service"
	"github.com/limbo/studytrack/pkg/dto"
	"github.com/limbo/studytrack/pkg/httputil"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 365
)

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	var req dto.AuthRequest
	defer r.Body.Close()
	err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("registering error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	user, err := s.userService.Register(ctx, &service.RegisterRequest{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserExists):
			logger.Error("registering error: existed user")
			httputil.WriteErrorResponse(w, http.StatusConflict, "user with such name already exists", nil)
		case errors.Is(err, errorvalues.ErrInvalidUserData):
			logger.Error("registering error: invalid credentials format")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid name or password format", err)
		default:
			logger.Error("registering error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during registration", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, dto.AuthResponse{
		UserID: user.ID.String(),
	})
	logger.Info("successful registration")
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	var req dto.AuthRequest
	defer r.Body.Close()
	err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("login error: invalid body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	user, err := s.userService.Login(ctx, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Error("login error: unexist user")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "user with such name doesn't exist", nil)
		case errors.Is(err, errorvalues.ErrWrongCredentials):
			logger.Error("login error: wrong password")
			httputil.WriteErrorResponse(w, http.StatusForbidden, "invalid username or password", nil)
		default:
			logger.Error("login error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during login", nil)
		}
		return
	}
	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		logger.Error("login error: generating token error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error creating token", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, dto.AuthResponse{
		UserID: user.ID.String(),
		Token:  token,
	})
	logger.Info("successful login")
}

// sessionRequest rejects bodies that name a user other than the authenticated one.
func sessionRequest(uid uuid.UUID, req *dto.SessionRequest) (*service.SessionRequest, error) {
	if req.UserID != "" {
		owner, err := uuid.Parse(req.UserID)
		if err != nil || owner != uid {
			return nil, errorvalues.ErrWrongOwner
		}
	}
	return &service.SessionRequest{
		Subject:   req.Subject,
		Minutes:   req.Minutes,
		StartedAt: req.StartedAt,
		Note:      req.Note,
	}, nil
}

// writeSessionsError maps service errors of the sessions handlers onto statuses.
func writeSessionsError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, errorvalues.ErrInvalidSession):
		logger.Error(op+" error: invalid session", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid study session", err)
	case errors.Is(err, errorvalues.ErrSessionNotFound), errors.Is(err, errorvalues.ErrWrongOwner):
		logger.Error(op + " error: session not found or has different owner")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "study session doesn't exist", nil)
	case errors.Is(err, errorvalues.ErrUserNotFound):
		logger.Error(op + " error: unexist user")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "user doesn't exist", nil)
	default:
		logger.Error(op+" error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while processing study sessions", nil)
	}
}

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	uid, err := UIDFromContext(r.Context())
	if err != nil {
		logger.Error("list sessions error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*15)
	defer cancel()
	sessions, err := s.sessionsService.ListSessions(ctx, uid)
	if err != nil {
		writeSessionsError(w, logger, "list sessions", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, dto.SessionsResponse{
		UserID:   uid.String(),
		Sessions: dto.FromSessions(sessions),
	})
	logger.Info("sessions provided", slog.Int("count", len(sessions)))
}

func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	uid, err := UIDFromContext(r.Context())
	if err != nil {
		logger.Error("create session error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req dto.SessionRequest
	defer r.Body.Close()
	if err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("create session error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	sreq, err := sessionRequest(uid, &req)
	if err != nil {
		logger.Error("create session error: foreign user id in body")
		httputil.WriteErrorResponse(w, http.StatusForbidden, "cannot create sessions for another user", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	session, err := s.sessionsService.CreateSession(ctx, uid, sreq)
	if err != nil {
		writeSessionsError(w, logger, "create session", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, dto.FromSession(session))
	logger.Info("session created", slog.String("session_id", session.ID.String()))
}

func (s *Server) CreateSessionsBatch(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	uid, err := UIDFromContext(r.Context())
	if err != nil {
		logger.Error("create sessions batch error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req dto.BatchRequest
	defer r.Body.Close()
	if err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("create sessions batch error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	reqs := make([]service.SessionRequest, 0, len(req.Sessions))
	for i := range req.Sessions {
		sreq, err := sessionRequest(uid, &req.Sessions[i])
		if err != nil {
			logger.Error("create sessions batch error: foreign user id in body")
			httputil.WriteErrorResponse(w, http.StatusForbidden, "cannot create sessions for another user", nil)
			return
		}
		reqs = append(reqs, *sreq)
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*15)
	defer cancel()
	sessions, err := s.sessionsService.CreateSessions(ctx, uid, reqs)
	if err != nil {
		writeSessionsError(w, logger, "create sessions batch", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, dto.SessionsResponse{
		UserID:   uid.String(),
		Sessions: dto.FromSessions(sessions),
	})
	logger.Info("sessions batch created", slog.Int("count", len(sessions)))
}

func (s *Server) UpdateSession(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	uid, err := UIDFromContext(r.Context())
	if err != nil {
		logger.Error("update session error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		logger.Error("update session error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid session id in path value", nil)
		return
	}
	var req dto.SessionRequest
	defer r.Body.Close()
	if err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("update session error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	sreq, err := sessionRequest(uid, &req)
	if err != nil {
		logger.Error("update session error: foreign user id in body")
		httputil.WriteErrorResponse(w, http.StatusForbidden, "cannot move sessions to another user", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	session, err := s.sessionsService.UpdateSession(ctx, id, uid, sreq)
	if err != nil {
		writeSessionsError(w, logger, "update session", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, dto.FromSession(session))
	logger.Info("session updated", slog.String("session_id", id.String()))
}

func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	uid, err := UIDFromContext(r.Context())
	if err != nil {
		logger.Error("session deletion error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		logger.Error("session deletion error: invalid id in path value")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid session id in path value", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*10)
	defer cancel()
	if err = s.sessionsService.DeleteSession(ctx, id, uid); err != nil {
		writeSessionsError(w, logger, "session deletion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	logger.Info("session deleted", slog.String("session_id", id.String()))
}

func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())
	uid, err := UIDFromContext(r.Context())
	if err != nil {
		logger.Error("stats error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 1 || days > maxStatsDays {
		days = defaultStatsDays
	}
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			logger.Error("stats error: unknown time zone", slog.String("tz", tz))
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "unknown time zone", nil)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Second*15)
	defer cancel()
	report, err := s.sessionsService.Stats(ctx, uid, days, loc)
	if err != nil {
		writeSessionsError(w, logger, "stats", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, report)
	logger.Info("stats provided")
}
