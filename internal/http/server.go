// Package http serves the SmartCash web UI: server-rendered pages backed by
// the remote API, with the session store deciding who is logged in.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"smartcash/internal/cache"
	"smartcash/internal/charts"
	"smartcash/internal/core"
	"smartcash/internal/ledger"
	"smartcash/internal/log"
	"smartcash/internal/session"
	appweb "smartcash/web"
)

// AuthAPI is the slice of the remote client the auth handlers consume.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (core.User, error)
	Register(ctx context.Context, name, email, password string) (core.User, error)
	UpdateUser(ctx context.Context, user core.User, password string) (core.User, error)
}

type Server struct {
	http.Server

	templates  *template.Template
	sessions   *session.Store
	ledger     *ledger.ViewModel
	auth       AuthAPI
	charts     *charts.Renderer
	chartCache *cache.Cache[[]byte]
	limiter    *rateLimiter
	logger     *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, sessions *session.Store, vm *ledger.ViewModel, auth AuthAPI, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		sessions:   sessions,
		ledger:     vm,
		auth:       auth,
		charts:     charts.NewRenderer(),
		chartCache: cache.New[[]byte](8, 5*time.Minute),
		limiter:    newRateLimiter(60, 5*time.Minute),
		logger:     logger.WithComponent(log.ComponentHTTP),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err.Error())
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("/", s.withRequest(s.handleDashboard))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/login", s.withRequest(s.handleLogin))
	mux.HandleFunc("/signup", s.withRequest(s.handleSignup))
	mux.HandleFunc("/logout", s.withRequest(s.handleLogout))
	mux.HandleFunc("/profile", s.withRequest(s.handleProfile))

	mux.HandleFunc("/transactions/new", s.withRequest(s.handleNewTransaction))
	mux.HandleFunc("/transactions/edit", s.withRequest(s.handleEditTransaction))
	mux.HandleFunc("/transactions/delete", s.withRequest(s.handleRequestDelete))
	mux.HandleFunc("/transactions/delete/confirm", s.withRequest(s.handleConfirmDelete))
	mux.HandleFunc("/transactions/delete/cancel", s.withRequest(s.handleCancelDelete))

	mux.HandleFunc("/chart.png", s.withRequest(s.handleChart))

	return s
}

// Shutdown stops the HTTP server and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
