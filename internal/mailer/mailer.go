package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mailgun "github.com/mailgun/mailgun-go/v5"
	"golang.org/x/time/rate"

	"github.com/elchemista/FormRelay/internal/config"
	errorspkg "github.com/elchemista/FormRelay/internal/errors"
)

// Envelope is one outbound notification for a single recipient.
type Envelope struct {
	To      string
	From    string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
}

// Sender defines behaviour required to deliver a notification.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// DeliveryError describes a failed provider call.
type DeliveryError struct {
	Recipient string
	Status    int
	Body      string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Status > 0 {
		return strings.TrimSpace(fmt.Sprintf("Mailgun failed: %d %s", e.Status, strings.TrimSpace(e.Body)))
	}
	if e.Err != nil {
		return "Mailgun failed: " + e.Err.Error()
	}
	return "Mailgun failed"
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Service sends notifications using Mailgun.
type Service struct {
	domain  string
	mg      mailgun.Mailgun
	limiter *rate.Limiter
}

// NewService constructs a Service using the provided configuration. When no
// explicit Mailgun client is supplied, a default client is created.
func NewService(cfg config.Mailgun, mg mailgun.Mailgun) (*Service, error) {
	if !cfg.Ready() {
		return nil, fmt.Errorf("mailgun: missing %s", strings.Join(cfg.Missing(), ", "))
	}

	if mg == nil {
		client := mailgun.NewMailgun(cfg.APIKey)
		if cfg.APIBase != "" {
			if err := client.SetAPIBase(cfg.APIBase); err != nil {
				return nil, fmt.Errorf("mailgun api base: %w", err)
			}
		}
		mg = client
	}

	svc := &Service{domain: cfg.Domain, mg: mg}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		svc.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return svc, nil
}

// Send delivers env via Mailgun. Failures are reported as DeliveryFailed
// errors wrapping a *DeliveryError.
func (s *Service) Send(ctx context.Context, env Envelope) error {
	if s == nil || s.mg == nil {
		return errorspkg.New(errorspkg.ConfigurationMissing, "mailer is not configured")
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return deliveryFailure(env.To, err)
		}
	}

	message := mailgun.NewMessage(s.domain, env.From, env.Subject, env.Text)
	if err := message.AddRecipient(env.To); err != nil {
		return fmt.Errorf("add recipient: %w", err)
	}
	if env.HTML != "" {
		message.SetHTML(env.HTML)
	}
	if env.ReplyTo != "" {
		message.SetReplyTo(env.ReplyTo)
	}

	if _, err := s.mg.Send(ctx, message); err != nil {
		return deliveryFailure(env.To, err)
	}

	return nil
}

func deliveryFailure(recipient string, err error) error {
	de := &DeliveryError{Recipient: recipient, Err: err}

	var unexpected *mailgun.UnexpectedResponseError
	if errors.As(err, &unexpected) {
		de.Status = unexpected.Actual
		de.Body = string(unexpected.Data)
	}

	return errorspkg.Wrap(errorspkg.DeliveryFailed, de, de.Error())
}

// SendAll delivers env to each recipient in order and stops at the first
// failure. It returns how many sends succeeded; earlier sends are not undone.
func SendAll(ctx context.Context, s Sender, recipients []string, env Envelope) (int, error) {
	if s == nil {
		return 0, errorspkg.New(errorspkg.ConfigurationMissing, "mailer is not configured")
	}

	sent := 0
	for _, to := range recipients {
		env.To = to
		if err := s.Send(ctx, env); err != nil {
			return sent, err
		}
		sent++
	}

	return sent, nil
}
