package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/limbo/studytrack/internal/service"
	"github.com/limbo/studytrack/pkg/cleanup"
)

type Server struct {
	mx              *chi.Mux
	userService     service.UserServiceI
	sessionsService service.SessionsServiceI
	tokens          TokenServiceI
}

type ServicesList struct {
	UserService     service.UserServiceI
	SessionsService service.SessionsServiceI
	Tokens          TokenServiceI
}

func New(servicesOptions *ServicesList) *Server {
	s := &Server{
		mx:              chi.NewMux(),
		userService:     servicesOptions.UserService,
		sessionsService: servicesOptions.SessionsService,
		tokens:          servicesOptions.Tokens,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mx.Use(s.RequestScopeMiddleware)
	s.mx.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.Health)
		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)
		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)
			r.Get("/sessions", s.ListSessions)
			r.Post("/sessions", s.CreateSession)
			r.Post("/sessions/batch", s.CreateSessionsBatch)
			r.Patch("/sessions/{id}", s.UpdateSession)
			r.Delete("/sessions/{id}", s.DeleteSession)
			r.Get("/stats", s.Stats)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mx.ServeHTTP(w, r)
}

// Run serves until SIGINT/SIGTERM, then shuts down and runs registered cleanup jobs.
func (s *Server) Run(addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server started", slog.String("address", addr))
		errCh <- httpServer.ListenAndServe()
	}()
	defer cleanup.CleanUp()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
