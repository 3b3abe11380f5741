package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"treno/internal/journal"
	"treno/internal/logging"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/starfederation/datastar-go/datastar"
)

//go:embed templates/*.html static/*.js static/*.css
var assetsFS embed.FS

// DatastarURL is the client bundle the pages load.
const DatastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

type ServerConfig struct {
	Addr    string
	Session *journal.Session
	Logger  *slog.Logger

	// KeepAlive is the SSE keep-alive interval (default 25s).
	KeepAlive time.Duration
	// MaxUploadBytes caps one image upload request (default 16 MiB).
	MaxUploadBytes int64
}

type Server struct {
	mu   sync.RWMutex
	cfg  ServerConfig
	tmpl *template.Template
	log  *slog.Logger
}

func (s *Server) cfgSnapshot() ServerConfig {
	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()
	return cfg
}

func (s *Server) session() *journal.Session {
	s.mu.RLock()
	sess := s.cfg.Session
	s.mu.RUnlock()
	return sess
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		return nil, errors.New("web: addr is empty")
	}
	if cfg.Session == nil {
		return nil, errors.New("web: session is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 25 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}

	tmpl, err := template.New("base").Funcs(templateFuncs()).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, tmpl: tmpl, log: cfg.Logger}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /ws/gestures", s.handleGestureWS)
	mux.HandleFunc("GET /static/app.css", s.handleAppCSS)
	mux.HandleFunc("GET /static/app.js", s.handleAppJS)
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("POST /select", s.handleSelectDate)
	mux.HandleFunc("POST /month", s.handleChangeMonth)
	mux.HandleFunc("POST /tap-outside", s.handleTapOutside)
	mux.HandleFunc("POST /records/new", s.handleRecordNew)
	mux.HandleFunc("POST /records/{index}/edit", s.handleRecordEdit)
	mux.HandleFunc("POST /form/back", s.handleFormBack)
	mux.HandleFunc("POST /form/save", s.handleFormSave)
	mux.HandleFunc("POST /form/fields", s.handleFormFields)
	mux.HandleFunc("POST /form/color", s.handleFormColor)
	mux.HandleFunc("POST /form/images", s.handleImageUpload)
	mux.HandleFunc("POST /form/images/{index}/remove", s.handleImageRemove)
	mux.HandleFunc("POST /delete/request", s.handleDeleteRequest)
	mux.HandleFunc("POST /delete/confirm", s.handleDeleteConfirm)
	mux.HandleFunc("POST /delete/cancel", s.handleDeleteCancel)

	var h http.Handler = mux
	h = s.accessLog(h)
	h = middleware.Recoverer(h)
	h = middleware.RequestID(h)
	return h
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"dur", time.Since(start),
			"reqId", middleware.GetReqID(r.Context()),
		)
	})
}

// redirectHome finishes a form POST (post/redirect/get).
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAppJS(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, "static/app.js", "application/javascript; charset=utf-8")
}

func (s *Server) handleAppCSS(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, "static/app.css", "text/css; charset=utf-8")
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, name, contentType string) {
	b, err := assetsFS.ReadFile(name)
	if err != nil || len(b) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) renderTemplate(name string, data any) (string, error) {
	var b strings.Builder
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	html, err := s.renderTemplate(name, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, html)
}

// renderMain renders the #treno-main fragment, draining queued alerts into it.
func (s *Server) renderMain() (string, error) {
	sess := s.session()
	return s.renderTemplate("main", newPageVM(sess.View(), sess.DrainAlerts()))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.serveDatastarElementsStream(w, r, "#treno-main", datastar.ElementPatchModeOuter, s.renderMain)
}

// serveDatastarElementsStream patches selector with render() once on connect
// and again after every session change until the client goes away.
func (s *Server) serveDatastarElementsStream(w http.ResponseWriter, r *http.Request, selector string, mode datastar.ElementPatchMode, render func() (string, error)) {
	cfg := s.cfgSnapshot()
	sse := datastar.NewSSE(w, r)

	ch, cancel := cfg.Session.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(cfg.KeepAlive)
	defer keepAlive.Stop()

	patch := func() {
		html, err := render()
		if err != nil {
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			return
		}
		if strings.TrimSpace(html) == "" {
			return
		}
		_ = sse.PatchElements(html, datastar.WithSelector(selector), datastar.WithMode(mode))
	}

	patch()
	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			patch()
		}
	}
}
