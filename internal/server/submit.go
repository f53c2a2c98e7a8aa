package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	errorspkg "github.com/elchemista/FormRelay/internal/errors"
	"github.com/elchemista/FormRelay/internal/events"
	"github.com/elchemista/FormRelay/internal/mailer"
	"github.com/elchemista/FormRelay/internal/middleware"
	"github.com/elchemista/FormRelay/internal/submission"
)

const publishTimeout = 3 * time.Second

// handleSubmit runs one submission through parsing, resolution, the optional
// guards and the recipient fan-out, then redirects to the thank-you target.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.RequestIDFromContext(ctx)

	if missing := s.cfg.Mailgun.Missing(); len(missing) > 0 {
		s.fail(w, r, errorspkg.New(errorspkg.ConfigurationMissing, "missing required configuration: "+strings.Join(missing, ", ")))
		return
	}

	sub, err := submission.Parse(r, s.cfg.Server.MaxBodyBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	form, err := s.resolver.Resolve(r.URL.Path, sub.Get(submission.FieldForm))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if !form.Enabled {
		s.fail(w, r, errorspkg.New(errorspkg.FormDisabled, "form disabled"))
		return
	}

	if sub.Get(submission.FieldHoneypot) != "" {
		s.logger.Info("honeypot triggered", "form", form.Name, "ip", middleware.ClientIP(r), "request_id", reqID)
		s.writeText(w, http.StatusOK, "OK")
		return
	}

	recipients, err := form.Recipients()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ip := middleware.ClientIP(r)

	if err := s.caps.Limiter.Allow(ctx, ip); err != nil {
		s.fail(w, r, err)
		return
	}

	if v := s.caps.Verifier; v != nil {
		field := v.TokenField()
		if err := v.Verify(ctx, sub.Get(field), ip); err != nil {
			s.fail(w, r, err)
			return
		}
		sub.Delete(field)
	}

	if s.caps.Archive != nil {
		id, err := s.caps.Archive.Write(ctx, form.Name, sub)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.logger.Debug("submission archived", "form", form.Name, "id", id, "request_id", reqID)
	}

	msg, err := s.composer.Compose(sub, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	env := mailer.Envelope{
		From:    form.From,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}
	if email := strings.TrimSpace(sub.Get("email")); strings.Contains(email, "@") {
		env.ReplyTo = email
	}

	sent, err := mailer.SendAll(ctx, s.caps.Mailer, recipients, env)
	if err != nil {
		s.logger.Error("notification delivery", "form", form.Name, "sent", sent, "recipients", len(recipients), "error", err, "request_id", reqID)
		s.fail(w, r, err)
		return
	}

	s.logger.Info("submission delivered", "form", form.Name, "recipients", sent, "request_id", reqID)

	s.publish(ctx, form.Name, sub, reqID)

	w.Header().Set("Location", redirectTarget(r, sub, form))
	w.WriteHeader(http.StatusSeeOther)
}

func (s *Server) publish(ctx context.Context, form string, sub *submission.Submission, reqID string) {
	if s.caps.Events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.caps.Events.Publish(ctx, events.NewEvent(form, sub, time.Now())); err != nil {
		s.logger.Warn("publish submission event", "form", form, "error", err, "request_id", reqID)
	}
}

// fail writes err as a plain-text error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorspkg.StatusOf(err)
	s.logger.Debug("submission rejected",
		"path", r.URL.Path,
		"kind", errorspkg.KindOf(err).String(),
		"status", status,
		"error", err,
		"request_id", middleware.RequestIDFromContext(r.Context()),
	)
	s.writeText(w, status, "Error: "+err.Error())
}
