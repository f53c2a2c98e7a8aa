package server

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elchemista/FormRelay/internal/config"
	"github.com/elchemista/FormRelay/internal/events"
	"github.com/elchemista/FormRelay/internal/forms"
	"github.com/elchemista/FormRelay/internal/guard"
	"github.com/elchemista/FormRelay/internal/mailer"
	"github.com/elchemista/FormRelay/internal/middleware"
	"github.com/elchemista/FormRelay/internal/notify"
	"github.com/elchemista/FormRelay/internal/pages"
	"github.com/elchemista/FormRelay/internal/router"
	"github.com/elchemista/FormRelay/internal/submission"
)

// Archiver persists accepted submissions.
type Archiver interface {
	Write(ctx context.Context, form string, sub *submission.Submission) (string, error)
}

// Capabilities are the collaborators a Server delegates to. Every field is
// optional; a nil Mailer is built from the Mailgun settings when they are
// complete.
type Capabilities struct {
	Mailer   mailer.Sender
	Limiter  *guard.Limiter
	Verifier *guard.Verifier
	Archive  Archiver
	Events   events.Publisher
}

// Server represents the HTTP server runtime.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	caps   Capabilities

	resolver *forms.Resolver
	composer *notify.Composer
	pageMgr  *pages.Manager

	router  *router.Router
	handler http.Handler

	thankYouOnce sync.Once
	thankYou     *pageEntry
	thankYouErr  error
}

// pageEntry caches rendered HTML and metadata.
type pageEntry struct {
	Body         []byte
	ETag         string
	LastModified time.Time
}

// New constructs a server instance.
func New(cfg *config.Config, caps Capabilities, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pageMgr, err := pages.NewThankYou(cfg.Server.ThankYouPage)
	if err != nil {
		return nil, fmt.Errorf("thank-you page: %w", err)
	}

	if caps.Mailer == nil && cfg.Mailgun.Ready() {
		svc, err := mailer.NewService(cfg.Mailgun, nil)
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		caps.Mailer = svc
	}

	fallbackFrom := ""
	if cfg.Mailgun.Domain != "" {
		fallbackFrom = "noreply@" + cfg.Mailgun.Domain
	}

	srv := &Server{
		cfg:      cfg,
		logger:   logger,
		caps:     caps,
		resolver: forms.NewResolver(cfg.Forms, cfg.Defaults, fallbackFrom),
		composer: notify.NewComposer(nil),
		pageMgr:  pageMgr,
		router:   router.New(),
	}

	srv.registerRoutes()

	srv.handler = middleware.Chain(
		http.HandlerFunc(srv.router.ServeHTTP),
		middleware.CORS("POST, OPTIONS", "Content-Type"),
		middleware.WithRequestID("X-Request-Id"),
		middleware.Logging(logger),
		middleware.Recover(logger, srv.recoverHandler),
	)

	return srv, nil
}

func (s *Server) registerRoutes() {
	s.router.Preflight(http.HandlerFunc(s.servePreflight))
	s.router.HandleFunc("/thank-you", s.serveThankYou)
	s.router.HandleMatch(forms.IsSubmitPath, http.HandlerFunc(s.handleSubmit), http.MethodPost)
	s.router.NotFound(http.HandlerFunc(s.serveNotFound))
	s.router.MethodNotAllowed(http.HandlerFunc(s.serveMethodNotAllowed))
}

// Handler exposes the server handler stack.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) servePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveThankYou(w http.ResponseWriter, r *http.Request) {
	entry, err := s.loadThankYou()
	if err != nil {
		s.logger.Error("render thank-you page", "error", err)
		s.writeText(w, http.StatusInternalServerError, "Error: internal error")
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Cache-Control", "public, max-age=300")
	header.Set("ETag", entry.ETag)
	header.Set("Last-Modified", entry.LastModified.UTC().Format(http.TimeFormat))

	if isNotModified(r, entry.ETag, entry.LastModified) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(entry.Body)
	}
}

func (s *Server) loadThankYou() (*pageEntry, error) {
	s.thankYouOnce.Do(func() {
		body, err := s.pageMgr.ThankYou(pages.ThankYouData())
		if err != nil {
			s.thankYouErr = err
			return
		}
		lastModified := s.cfg.LoadedAt()
		if lastModified.IsZero() {
			lastModified = time.Now()
		}
		s.thankYou = &pageEntry{
			Body:         body,
			ETag:         computeETag(body),
			LastModified: lastModified.UTC().Truncate(time.Second),
		}
	})
	return s.thankYou, s.thankYouErr
}

func (s *Server) serveNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeText(w, http.StatusNotFound, "Not Found")
}

func (s *Server) serveMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	s.writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func (s *Server) recoverHandler(w http.ResponseWriter, r *http.Request, rec any) {
	s.writeText(w, http.StatusInternalServerError, "Error: internal error")
}

func (s *Server) writeText(w http.ResponseWriter, status int, body string) {
	header := w.Header()
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf("\"%x\"", sum[:])
}

func isNotModified(r *http.Request, etag string, lastModified time.Time) bool {
	if etag != "" {
		if inm := r.Header.Get("If-None-Match"); inm != "" {
			for _, candidate := range strings.Split(inm, ",") {
				candidate = strings.TrimSpace(candidate)
				if candidate == etag || candidate == "*" {
					return true
				}
			}
			return false
		}
	}

	if !lastModified.IsZero() {
		if ims := r.Header.Get("If-Modified-Since"); ims != "" {
			if ts, err := time.Parse(http.TimeFormat, ims); err == nil {
				if !lastModified.After(ts) {
					return true
				}
			}
		}
	}

	return false
}
