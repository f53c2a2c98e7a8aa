// Package events publishes accepted submissions to message brokers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/elchemista/FormRelay/internal/config"
	"github.com/elchemista/FormRelay/internal/submission"
)

// TypeSubmissionReceived is the type of every published event.
const TypeSubmissionReceived = "submission.received"

// Event is the broker payload for an accepted submission.
type Event struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Form       string                 `json:"form"`
	Fields     *submission.Submission `json:"fields"`
	ReceivedAt time.Time              `json:"received_at"`
}

// NewEvent builds a submission.received event for form.
func NewEvent(form string, sub *submission.Submission, at time.Time) Event {
	if sub == nil {
		sub = submission.New()
	}
	return Event{
		Type:       TypeSubmissionReceived,
		ID:         uuid.NewString(),
		Form:       form,
		Fields:     sub,
		ReceivedAt: at.UTC(),
	}
}

// Encode returns the JSON body of e.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Multi fans an event out to several publishers.
type Multi []Publisher

// Publish sends e to every publisher and joins their errors.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects the publishers configured in cfg. It returns nil when none
// are configured.
func Open(cfg config.Events) (Publisher, error) {
	var pubs Multi

	if cfg.AMQPURL != "" {
		a, err := DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, a)
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		pubs = append(pubs, NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	switch len(pubs) {
	case 0:
		return nil, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}
