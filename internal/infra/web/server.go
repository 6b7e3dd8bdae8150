package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/domain/model"
)

// JobService is the slice of the job store the admin API drives.
type JobService interface {
	List() []*model.Job
	Get(id string) (*model.Job, error)
	Enqueue(ctx context.Context, names, urls []string) ([]*model.Job, error)
	CancelPending(ctx context.Context) (int, error)
}

// KeyService exposes the credential pool read side.
type KeyService interface {
	List(ctx context.Context) ([]model.Credential, error)
}

type Server struct {
	jobs   JobService
	keys   KeyService
	auth   *AuthManager
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(jobs JobService, keys KeyService, auth *AuthManager, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{jobs: jobs, keys: keys, auth: auth, log: &l}
}

// Router builds the admin routes. /healthz and /metrics are public.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(RunID(), Recover(s.log), RequestLog(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireAdmin(s.auth), Timeout(30*time.Second))
		r.Get("/stats", s.handleStats)
		r.Get("/jobs", s.handleListJobs)
		r.Post("/jobs", s.handleEnqueue)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/cancel-pending", s.handleCancelPending)
		r.Get("/keys", s.handleListKeys)
	})
	return r
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("admin server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
