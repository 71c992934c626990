// Package dispatch runs the daily delivery pass: for every subscriber it
// fetches, renders, personalizes, and sends one digest.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/platform/metrics"
	"github.com/louisbranch/onepaper/internal/platform/otel"
	"github.com/louisbranch/onepaper/internal/platform/timeouts"
	"github.com/louisbranch/onepaper/internal/services/digest/delivery"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
	"github.com/louisbranch/onepaper/internal/services/digest/events"
	"github.com/louisbranch/onepaper/internal/services/digest/render"
	"github.com/louisbranch/onepaper/internal/services/digest/storage"
	"github.com/louisbranch/onepaper/internal/services/digest/token"
)

const (
	// DefaultSendTime is the local wall-clock time of the daily pass.
	DefaultSendTime = "09:00"
	// DefaultPollInterval is how often the clock is checked.
	DefaultPollInterval = time.Minute

	sendTimeLayout = "15:04"
	dayLayout      = time.DateOnly
)

// Pass triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerOnce     = "once"
)

// ErrPassInProgress is returned when a pass is requested while one runs.
var ErrPassInProgress = apperrors.New(apperrors.CodePassInProgress, "dispatch pass already in progress")

// State is the scheduler state.
type State int32

const (
	StateIdle State = iota
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Fetcher gathers a subscriber's items.
type Fetcher interface {
	FetchAllSources(ctx context.Context, email string) []domain.NewsItem
}

// Subscribers is the subscriber list the pass walks.
type Subscribers interface {
	Reload(ctx context.Context) error
	Snapshot() []domain.Subscriber
}

// LinkMinter builds management links for a subscriber.
type LinkMinter interface {
	ManagementLinks(baseURL, email string) (token.Links, error)
}

// AttemptRecorder keeps the delivery attempt log.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt storage.AttemptRecord) error
}

// Config wires a scheduler.
type Config struct {
	Fetcher     Fetcher
	Subscribers Subscribers
	Renderer    *render.Renderer
	Links       LinkMinter
	Sender      delivery.Sender
	Attempts    AttemptRecorder
	Publisher   events.Publisher

	BaseURL      string
	SendTime     string
	PollInterval time.Duration
	Clock        func() time.Time
}

func (c Config) normalized() Config {
	if strings.TrimSpace(c.SendTime) == "" {
		c.SendTime = DefaultSendTime
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Renderer == nil {
		c.Renderer = render.New(nil)
	}
	if c.Publisher == nil {
		c.Publisher = events.NopPublisher{}
	}
	return c
}

// ParseSendTime validates an HH:MM send time.
func ParseSendTime(value string) (string, error) {
	value = strings.TrimSpace(value)
	parsed, err := time.Parse(sendTimeLayout, value)
	if err != nil {
		return "", fmt.Errorf("send time %q must be HH:MM: %w", value, err)
	}
	return parsed.Format(sendTimeLayout), nil
}

// Scheduler runs at most one pass at a time.
type Scheduler struct {
	cfg    Config
	state  atomic.Int32
	tracer trace.Tracer

	mu      sync.Mutex
	lastDay string
	last    *events.DispatchResult
}

// New builds a scheduler. The send time must be HH:MM.
func New(cfg Config) (*Scheduler, error) {
	cfg = cfg.normalized()
	sendTime, err := ParseSendTime(cfg.SendTime)
	if err != nil {
		return nil, err
	}
	cfg.SendTime = sendTime
	switch {
	case cfg.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case cfg.Subscribers == nil:
		return nil, fmt.Errorf("subscribers are required")
	case cfg.Links == nil:
		return nil, fmt.Errorf("link minter is required")
	case cfg.Sender == nil:
		return nil, fmt.Errorf("sender is required")
	}
	return &Scheduler{cfg: cfg, tracer: otel.Tracer("dispatch")}, nil
}

// State reports whether a pass is running.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastResult returns the summary of the most recent finished pass.
func (s *Scheduler) LastResult() (events.DispatchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return events.DispatchResult{}, false
	}
	return *s.last, true
}

// Run polls the clock until ctx is done and starts the daily pass when the
// send time is reached.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("dispatch: scheduler started, send time %s, poll every %s", s.cfg.SendTime, s.cfg.PollInterval)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("dispatch: scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts a pass if the clock shows the send time and no scheduled pass
// ran yet for today. It reports whether a pass ran. The day is only marked
// once the pass completes, so a tick that meets a manual pass in progress
// retries on the next poll within the send minute.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.cfg.Clock()
	if now.Format(sendTimeLayout) != s.cfg.SendTime {
		return false
	}
	day := now.Format(dayLayout)
	s.mu.Lock()
	done := s.lastDay == day
	s.mu.Unlock()
	if done {
		return false
	}

	if _, err := s.RunPass(ctx, TriggerSchedule); err != nil {
		log.Printf("dispatch: scheduled pass: %v", err)
		return false
	}
	s.mu.Lock()
	s.lastDay = day
	s.mu.Unlock()
	return true
}

// RunPass delivers one digest to every subscriber. A subscriber failure is
// logged and recorded; it never stops the pass.
func (s *Scheduler) RunPass(ctx context.Context, trigger string) (events.DispatchResult, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateDispatching)) {
		return events.DispatchResult{}, ErrPassInProgress
	}
	defer s.state.Store(int32(StateIdle))

	result := events.DispatchResult{
		PassID:    uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.cfg.Clock(),
	}
	ctx, span := s.tracer.Start(ctx, "dispatch.pass", trace.WithAttributes(
		attribute.String("onepaper.pass_id", result.PassID),
		attribute.String("onepaper.trigger", trigger),
	))
	defer span.End()
	metrics.DispatchPassesTotal.WithLabelValues(trigger).Inc()

	if err := s.cfg.Subscribers.Reload(ctx); err != nil {
		log.Printf("dispatch: reload subscribers, using last known list: %v", err)
	}
	subscribers := s.cfg.Subscribers.Snapshot()
	result.Subscribers = len(subscribers)
	log.Printf("dispatch: pass %s (%s) started for %d subscribers", result.PassID, trigger, len(subscribers))

	for _, sub := range subscribers {
		outcome := s.deliver(ctx, result.PassID, sub.Email)
		switch outcome {
		case storage.OutcomeSent:
			result.Sent++
		case storage.OutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
		metrics.DeliveriesTotal.WithLabelValues(outcome).Inc()
	}

	result.FinishedAt = s.cfg.Clock()
	metrics.DispatchPassDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	span.SetAttributes(
		attribute.Int("onepaper.sent", result.Sent),
		attribute.Int("onepaper.failed", result.Failed),
	)
	log.Printf("dispatch: pass %s finished: %d sent, %d failed, %d skipped",
		result.PassID, result.Sent, result.Failed, result.Skipped)

	if err := s.cfg.Publisher.PublishDispatchResult(ctx, result); err != nil {
		log.Printf("dispatch: publish result: %v", err)
	}
	s.mu.Lock()
	last := result
	s.last = &last
	s.mu.Unlock()
	return result, nil
}

// Message is a composed digest for one subscriber.
type Message struct {
	To        string
	Subject   string
	Body      string
	ItemCount int
}

// Compose fetches and renders the digest for email without sending it.
func (s *Scheduler) Compose(ctx context.Context, email string) (Message, error) {
	items := s.cfg.Fetcher.FetchAllSources(ctx, email)
	body, err := s.cfg.Renderer.Render(render.Build(items))
	if err != nil {
		return Message{}, err
	}
	links, err := s.cfg.Links.ManagementLinks(s.cfg.BaseURL, email)
	if err != nil {
		return Message{}, fmt.Errorf("management links: %w", err)
	}
	return Message{
		To:        email,
		Subject:   s.cfg.Renderer.Subject(s.cfg.Clock()),
		Body:      render.Personalize(body, render.Links(links), email),
		ItemCount: len(items),
	}, nil
}

func (s *Scheduler) deliver(ctx context.Context, passID, email string) string {
	attempt := storage.AttemptRecord{PassID: passID, Email: email}
	defer func() {
		s.record(ctx, attempt)
	}()

	if err := ctx.Err(); err != nil {
		attempt.Outcome = storage.OutcomeSkipped
		attempt.LastError = err.Error()
		return attempt.Outcome
	}

	msg, err := s.Compose(ctx, email)
	if err != nil {
		log.Printf("dispatch: compose for %s: %v", email, err)
		attempt.Outcome = storage.OutcomeFailed
		attempt.LastError = err.Error()
		return attempt.Outcome
	}
	attempt.ItemCount = msg.ItemCount

	sendCtx, cancel := context.WithTimeout(ctx, timeouts.Delivery)
	defer cancel()
	if err := s.cfg.Sender.Send(sendCtx, msg.To, msg.Subject, msg.Body); err != nil {
		log.Printf("dispatch: send to %s: %v", email, err)
		attempt.Outcome = storage.OutcomeFailed
		attempt.LastError = err.Error()
		return attempt.Outcome
	}
	log.Printf("dispatch: digest sent to %s (%d items)", email, msg.ItemCount)
	attempt.Outcome = storage.OutcomeSent
	return attempt.Outcome
}

func (s *Scheduler) record(ctx context.Context, attempt storage.AttemptRecord) {
	if s.cfg.Attempts == nil {
		return
	}
	attempt.CreatedAt = s.cfg.Clock().UTC()
	// The log outlives a canceled pass.
	if err := s.cfg.Attempts.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		log.Printf("dispatch: record attempt for %s: %v", attempt.Email, err)
	}
}
