// Package delivery hands rendered digests to a mail transport.
package delivery

import (
	"context"
	"log"
	"sync"
)

// Sender delivers one HTML message.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Message is one delivery recorded by LogSender.
type Message struct {
	To      string
	Subject string
	Body    string
}

// LogSender logs deliveries instead of sending them. It stands in when no
// mail transport is configured.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

// NewLogSender returns a sender that only logs.
func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, Message{To: to, Subject: subject, Body: htmlBody})
	s.mu.Unlock()
	log.Printf("delivery: smtp not configured, would send %q to %s (%d bytes)", subject, to, len(htmlBody))
	return nil
}

// Sent returns a copy of every logged delivery.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
