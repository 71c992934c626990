// Package events publishes dispatch outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/louisbranch/onepaper/internal/platform/metrics"
	"github.com/louisbranch/onepaper/internal/platform/timeouts"
)

// SubjectDispatchResult carries one message per finished dispatch pass.
const SubjectDispatchResult = "digest.dispatch.result"

// DispatchResult summarizes one dispatch pass.
type DispatchResult struct {
	PassID      string    `json:"pass_id"`
	Trigger     string    `json:"trigger"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Subscribers int       `json:"subscribers"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
}

// Publisher emits dispatch results.
type Publisher interface {
	PublishDispatchResult(ctx context.Context, result DispatchResult) error
	Close()
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishDispatchResult(context.Context, DispatchResult) error { return nil }

func (NopPublisher) Close() {}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher publishes JSON events to a NATS subject.
type NATSPublisher struct {
	conn    conn
	subject string
}

// ConnectNATS dials url and returns a publisher on SubjectDispatchResult.
func ConnectNATS(url string) (*NATSPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	nc, err := nats.Connect(url,
		nats.Name("onepaper-digest"),
		nats.Timeout(timeouts.NATSConnect),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("events: nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("events: nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATSPublisher(nc, SubjectDispatchResult), nil
}

func newNATSPublisher(c conn, subject string) *NATSPublisher {
	return &NATSPublisher{conn: c, subject: subject}
}

// PublishDispatchResult publishes result and waits for the server to take
// it, bounded by ctx or the connect timeout.
func (p *NATSPublisher) PublishDispatchResult(ctx context.Context, result DispatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode dispatch result: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(p.subject, metrics.StatusError).Inc()
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	flush := timeouts.NATSConnect
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < flush {
			flush = remaining
		}
	}
	if err := p.conn.FlushTimeout(flush); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(p.subject, metrics.StatusError).Inc()
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(p.subject, metrics.StatusSuccess).Inc()
	return nil
}

// Close closes the connection.
func (p *NATSPublisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}

var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*NATSPublisher)(nil)
)
