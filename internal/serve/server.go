// Package serve runs the local preview server: it serves the build output,
// rebuilds when sources change, and pushes a livereload message to open
// browser tabs afterwards.
package serve

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"platen/internal/watch"
)

// Options configures a preview server.
type Options struct {
	// OutputDir is the built site to serve.
	OutputDir string

	// WatchDirs lists source trees to watch for rebuilds. Empty disables
	// watching.
	WatchDirs []string

	// Rebuild runs when watched sources settle. A failed rebuild is
	// logged and the reload is withheld, so open tabs keep the last good
	// output.
	Rebuild func(ctx context.Context) error

	// LiveReload injects the reload client into served HTML and exposes
	// the /livereload socket.
	LiveReload bool

	// CORS allows cross-origin reads, for poking at the output from
	// another local app.
	CORS bool

	Logger *zap.Logger
}

// Server is the preview server.
type Server struct {
	addr    string
	opts    Options
	log     *zap.Logger
	hub     *hub
	watcher *watch.Watcher
}

// New assembles a server listening on addr.
func New(addr string, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("serve")

	s := &Server{
		addr: addr,
		opts: opts,
		log:  log,
	}
	if opts.LiveReload {
		s.hub = newHub(log)
	}

	if len(opts.WatchDirs) > 0 {
		w, err := watch.New(opts.WatchDirs, s.onChange, watch.Options{Logger: opts.Logger})
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}

	return s, nil
}

// Router builds the HTTP handler. Exposed so tests can drive it without a
// listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	if s.opts.CORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	if s.hub != nil {
		r.Get("/livereload", s.hub.handle)
	}
	r.Handle("/*", staticHandler{dir: s.opts.OutputDir, inject: s.hub != nil})

	return r
}

// ListenAndServe runs until ctx is canceled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			return err
		}
		defer s.watcher.Stop()
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.log.Info("preview server listening",
		zap.String("addr", "http://"+ln.Addr().String()),
		zap.Bool("livereload", s.hub != nil),
		zap.Int("watched_dirs", len(s.opts.WatchDirs)),
	)

	select {
	case <-ctx.Done():
		if s.hub != nil {
			s.hub.closeAll()
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		<-errCh
		return err

	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// onChange is the watcher callback: rebuild, then tell the browsers.
func (s *Server) onChange(paths []string) {
	s.log.Info("sources changed", zap.Int("files", len(paths)), zap.String("first", paths[0]))

	if s.opts.Rebuild != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.opts.Rebuild(ctx); err != nil {
			s.log.Warn("rebuild failed, keeping last good output", zap.Error(err))
			return
		}
	}

	if s.hub != nil {
		s.hub.broadcast("reload")
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
