package webserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mmarchetti/votemon/internal/snapshot"
)

type Config struct {
	Host string
	Port int
}

// Server owns the viewer registry and serves the display page. Publish,
// register and unregister all serialize on one mutex, so a snapshot can
// never race a viewer being added or dropped.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	last    snapshot.Snapshot
	hasLast bool

	httpSrv *http.Server
}

func New(cfg Config, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		viewers: make(map[*viewer]struct{}),
	}
}

// Publish implements snapshot.Broadcaster. Delivery is non-blocking per
// viewer: anyone whose buffer is full is dropped so the rest still receive
// this and every later snapshot.
func (s *Server) Publish(snap snapshot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
	s.hasLast = true
	var stale []*viewer
	for v := range s.viewers {
		select {
		case v.send <- snap:
		default:
			stale = append(stale, v)
		}
	}
	for _, v := range stale {
		s.logger.Warn("webserver: viewer not keeping up, dropping", "viewer", v.id)
		s.dropLocked(v)
	}
}

// register adds a viewer and immediately queues the latest snapshot so a
// mid-session connection is never blank.
func (s *Server) register(v *viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[v] = struct{}{}
	if s.hasLast {
		select {
		case v.send <- s.last:
		default:
		}
	}
}

// unregister removes a viewer. Idempotent.
func (s *Server) unregister(v *viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(v)
}

func (s *Server) dropLocked(v *viewer) {
	if _, ok := s.viewers[v]; !ok {
		return
	}
	delete(s.viewers, v)
	close(v.send)
	v.conn.Close()
}

// ViewerCount reports how many viewers are currently registered.
func (s *Server) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", s.handleViewer)
	r.Get("/", s.servePage)
	r.Get("/noautoprint", s.servePage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(staticFiles())))
	return r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webserver: serve failed", "err", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
