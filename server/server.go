package server

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yuin/goldmark"

	"crew_research_assistant/metrics"
	"crew_research_assistant/pipeline"
)

//go:embed web/index.html web/about.md
var webFS embed.FS

const (
	sessionCookie  = "session_id"
	reportFileName = "research_report.md"
)

type Config struct {
	Controller   *pipeline.Controller
	Logger       *slog.Logger
	DefaultTopic string
	SessionTTL   time.Duration
}

type Server struct {
	ctrl  *pipeline.Controller
	log   *slog.Logger
	store *sessionStore
	page  *template.Template
	md    goldmark.Markdown
	about template.HTML
}

func New(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("pipeline controller required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		ctrl:  cfg.Controller,
		log:   log,
		store: newStore(cfg.SessionTTL, cfg.DefaultTopic),
		md:    newMarkdown(),
	}

	page, err := template.New("index.html").Funcs(template.FuncMap{
		"markdown": s.renderMarkdown,
	}).ParseFS(webFS, "web/index.html")
	if err != nil {
		return nil, err
	}
	s.page = page

	about, err := webFS.ReadFile("web/about.md")
	if err != nil {
		return nil, err
	}
	s.about = s.renderMarkdown(string(about))

	s.store.start()
	return s, nil
}

// Close stops the session expiry loop.
func (s *Server) Close() {
	s.store.stop()
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/", s.handleIndex)
	r.Post("/start", s.handleStartForm)
	r.Post("/reset", s.handleResetForm)
	r.Get("/download", s.handleDownload)

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.handleSessionGet)
		r.Post("/start", s.handleSessionStart)
		r.Post("/advance", s.handleSessionAdvance)
		r.Post("/reset", s.handleSessionReset)
		r.Get("/report", s.handleDownload)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// session returns the caller's session, creating one and setting the cookie
// when the request carries none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.store.get(c.Value); ok {
			return sess
		}
	}
	sess := s.store.create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.log.Debug("session created", "session", sess.ID)
	return sess
}

// existingSession is session without creation, for handlers that only make
// sense after the pipeline has run.
func (s *Server) existingSession(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return s.store.get(c.Value)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.existingSession(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	st := sess.Snapshot()
	if !st.ReviewDone {
		http.Error(w, "final report not available yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/markdown")
	w.Header().Set("Content-Disposition", `attachment; filename="`+reportFileName+`"`)
	_, _ = w.Write([]byte(st.ReviewOutput))
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
