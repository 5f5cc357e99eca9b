package web

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr      string
	handlers  *Handlers
	photosDir string
}

// NewServer creates a server configured for the given address and
// dependencies. photosDir is served read-only under /photos/.
func NewServer(addr string, handlers *Handlers, photosDir string) *Server {
	return &Server{
		addr:      addr,
		handlers:  handlers,
		photosDir: photosDir,
	}
}

// Router returns the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/capture", s.handlers.HandleCapture)
	r.Get("/events", s.handlers.HandleEvents)
	r.Get("/quota", s.handlers.HandleQuota)
	r.Get("/logs/stream", s.handlers.HandleLogStream)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/photos/*", http.StripPrefix("/photos/", http.FileServer(http.Dir(s.photosDir))))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	r.Get("/", s.handlers.ServeIndex)

	return r
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("web server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// StaticFS returns the embedded static assets rooted at static/.
func StaticFS() fs.FS {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatal().Err(err).Msg("sub static fs")
	}
	return subFS
}
