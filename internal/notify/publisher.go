// Package notify publishes page events for images written by pdfrender.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/pdf-to-image/internal/pdfrender"
)

// ErrSubjectRequired is returned when no subject is configured.
var ErrSubjectRequired = errors.New("nats subject is required")

// Config identifies where and on whose behalf events are published. When
// Stream is set, Connect makes sure a stream of that name captures Subject.
type Config struct {
	URL      string
	Subject  string
	Stream   string
	TenantID string
	UserID   string
}

// StreamCreator is the subset of jetstream.JetStream used to set up streams.
type StreamCreator interface {
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// Publisher is the subset of jetstream.JetStream used to send events.
type Publisher interface {
	Publish(
		ctx context.Context,
		subject string,
		payload []byte,
		opts ...jetstream.PublishOpt,
	) (*jetstream.PubAck, error)
}

var _ pdfrender.PagePublisher = (*PagePublisher)(nil)

// PagePublisher sends one events.PNGCreatedEvent per written page. All events
// of a run share a workflow ID.
type PagePublisher struct {
	publisher  Publisher
	conn       *nats.Conn
	cfg        Config
	workflowID string
	now        func() time.Time
}

// NewPagePublisher wraps an existing JetStream publisher.
func NewPagePublisher(publisher Publisher, cfg Config) (*PagePublisher, error) {
	if cfg.Subject == "" {
		return nil, ErrSubjectRequired
	}

	return &PagePublisher{
		publisher:  publisher,
		cfg:        cfg,
		workflowID: uuid.NewString(),
		now:        time.Now,
	}, nil
}

// Connect dials cfg.URL and returns a publisher bound to its JetStream context.
func Connect(ctx context.Context, cfg Config) (*PagePublisher, error) {
	if cfg.Subject == "" {
		return nil, ErrSubjectRequired
	}

	conn, connErr := nats.Connect(cfg.URL)
	if connErr != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", connErr)
	}

	jetStream, jsErr := jetstream.New(conn)
	if jsErr != nil {
		conn.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", jsErr)
	}

	if cfg.Stream != "" {
		streamErr := EnsureStream(ctx, jetStream, cfg.Stream, cfg.Subject)
		if streamErr != nil {
			conn.Close()

			return nil, streamErr
		}
	}

	pagePublisher, err := NewPagePublisher(jetStream, cfg)
	if err != nil {
		conn.Close()

		return nil, err
	}

	pagePublisher.conn = conn

	return pagePublisher, nil
}

// EnsureStream creates the named stream for subject unless it already exists.
func EnsureStream(ctx context.Context, creator StreamCreator, name, subject string) error {
	_, streamErr := creator.CreateStream(ctx, newStreamConfig(name, subject))
	if streamErr != nil && !errors.Is(streamErr, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream '%s': %w", name, streamErr)
	}

	return nil
}

func newStreamConfig(name, subject string) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:              name,
		Subjects:          []string{subject},
		Retention:         jetstream.WorkQueuePolicy,
		MaxConsumers:      -1,
		MaxMsgs:           -1,
		MaxBytes:          -1,
		Discard:           jetstream.DiscardOld,
		MaxMsgsPerSubject: -1,
		MaxMsgSize:        -1,
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Compression:       jetstream.NoCompression,
	}
}

// WorkflowID returns the identifier shared by all events of this publisher.
func (p *PagePublisher) WorkflowID() string { return p.workflowID }

// PublishPage marshals and publishes the event for one page.
func (p *PagePublisher) PublishPage(ctx context.Context, page pdfrender.PageEvent) error {
	event := events.PNGCreatedEvent{
		Header: events.EventHeader{
			WorkflowID: p.workflowID,
			UserID:     p.cfg.UserID,
			TenantID:   p.cfg.TenantID,
			EventID:    uuid.NewString(),
			Timestamp:  p.now(),
		},
		PNGKey:     page.OutputPath,
		PageNumber: page.PageNumber,
		TotalPages: page.TotalPages,
	}

	payload, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal page event: %w", marshalErr)
	}

	_, pubErr := p.publisher.Publish(ctx, p.cfg.Subject, payload)
	if pubErr != nil {
		return fmt.Errorf("failed to publish page event: %w", pubErr)
	}

	return nil
}

// Close drains the NATS connection if this publisher opened it.
func (p *PagePublisher) Close() error {
	if p.conn == nil {
		return nil
	}

	drainErr := p.conn.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", drainErr)
	}

	return nil
}
