package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/studytrack/internal/error_values"
	"github.com/limbo/studytrack/pkg/httputil"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	uidKey
)

const userLookupTimeout = 5 * time.Second

// RequestScopeMiddleware tags every request with a fresh id, echoed in X-Request-ID,
// and puts a logger carrying it into the request context.
func (s *Server) RequestScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		logger := slog.Default().With(
			slog.String("request_id", reqID),
			slog.String("from", r.RemoteAddr),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), loggerKey, logger)))
	})
}

// AuthMiddleware lets through requests whose bearer token belongs to an existing user.
// The user's id is added to the context and to the request logger.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())
		uid, err := s.authenticate(r)
		switch {
		case err == nil:
		case errors.Is(err, errorvalues.ErrInvalidToken):
			logger.Warn("rejected token", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusUnauthorized, "authorization failed: invalid token", nil)
			return
		case errors.Is(err, errorvalues.ErrUserNotFound):
			logger.Warn("token of a deleted user", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusUnauthorized, "authorization failed: user not found", nil)
			return
		default:
			logger.Error("authenticating request error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while authorizing", nil)
			return
		}
		ctx := WithUID(r.Context(), uid)
		ctx = context.WithValue(ctx, loggerKey, logger.With(slog.String("uid", uid.String())))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authenticate(r *http.Request) (uuid.UUID, error) {
	token, err := bearerToken(r)
	if err != nil {
		return uuid.Nil, err
	}
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return uuid.Nil, err
	}
	uid, err := claims.Usable(time.Now())
	if err != nil {
		return uuid.Nil, err
	}
	ctx, cancel := context.WithTimeout(r.Context(), userLookupTimeout)
	defer cancel()
	if _, err = s.userService.GetByID(ctx, uid); err != nil {
		return uuid.Nil, err
	}
	return uid, nil
}

func bearerToken(r *http.Request) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" || strings.ContainsRune(token, ' ') {
		return "", errorvalues.ErrInvalidToken
	}
	return token, nil
}

// LoggerFromContext falls back to the default logger outside RequestScopeMiddleware.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

func WithUID(ctx context.Context, uid uuid.UUID) context.Context {
	return context.WithValue(ctx, uidKey, uid)
}

func UIDFromContext(ctx context.Context) (uuid.UUID, error) {
	uid, ok := ctx.Value(uidKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("no authenticated uid in context")
	}
	return uid, nil
}
