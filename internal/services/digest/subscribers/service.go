package subscribers

import (
	"context"
	"log"
	"sort"
	"sync"

	apperrors "github.com/louisbranch/onepaper/internal/platform/errors"
	"github.com/louisbranch/onepaper/internal/platform/metrics"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

// Service is the in-memory view of the subscriber list. Mutations are
// applied in memory first and then saved; a failed save is logged and the
// memory view is kept.
type Service struct {
	store Store

	mu          sync.RWMutex
	subscribers map[string][]string
}

// NewService loads the store into memory.
func NewService(ctx context.Context, store Store) (*Service, error) {
	s := &Service{store: store, subscribers: map[string][]string{}}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the memory view with the stored list.
func (s *Service) Reload(ctx context.Context) error {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "load subscribers", err)
	}
	s.mu.Lock()
	s.subscribers = loaded
	count := len(loaded)
	s.mu.Unlock()
	metrics.Subscribers.Set(float64(count))
	return nil
}

// Add registers email with prefs, replacing earlier preferences. Nil prefs
// subscribe to every source.
func (s *Service) Add(ctx context.Context, email string, prefs []string) error {
	email = domain.NormalizeEmail(email)
	if !domain.ValidEmail(email) {
		return apperrors.WithMetadata(apperrors.CodeInvalidEmail, "invalid email format", map[string]string{"Email": email})
	}
	if prefs == nil {
		prefs = domain.AllSources()
	}
	s.mu.Lock()
	s.subscribers[email] = append([]string(nil), prefs...)
	s.mu.Unlock()

	log.Printf("subscribers: added %s", email)
	s.persist(ctx)
	return nil
}

// Remove deletes email. Removing an unknown address only logs a warning.
func (s *Service) Remove(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	s.mu.Lock()
	_, ok := s.subscribers[email]
	delete(s.subscribers, email)
	s.mu.Unlock()

	if !ok {
		log.Printf("subscribers: warning: remove of unknown subscriber %s", email)
		return nil
	}
	log.Printf("subscribers: removed %s", email)
	s.persist(ctx)
	return nil
}

// UpdatePreferences replaces the preferences of an existing subscriber.
func (s *Service) UpdatePreferences(ctx context.Context, email string, prefs []string) error {
	email = domain.NormalizeEmail(email)
	s.mu.Lock()
	if _, ok := s.subscribers[email]; !ok {
		s.mu.Unlock()
		return apperrors.WithMetadata(apperrors.CodeSubscriberNotFound, "subscriber not found", map[string]string{"Email": email})
	}
	s.subscribers[email] = append([]string{}, prefs...)
	s.mu.Unlock()

	log.Printf("subscribers: updated preferences for %s", email)
	s.persist(ctx)
	return nil
}

// Preferences returns a copy of the stored preferences of email.
func (s *Service) Preferences(email string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.subscribers[domain.NormalizeEmail(email)]
	if !ok {
		return nil, false
	}
	return append([]string{}, prefs...), true
}

// Snapshot lists every subscriber ordered by email.
func (s *Service) Snapshot() []domain.Subscriber {
	s.mu.RLock()
	list := make([]domain.Subscriber, 0, len(s.subscribers))
	for email, prefs := range s.subscribers {
		list = append(list, domain.Subscriber{Email: email, Preferences: append([]string{}, prefs...)})
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Email < list[j].Email })
	return list
}

// Count reports the number of subscribers.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (s *Service) persist(ctx context.Context) {
	s.mu.RLock()
	copied := make(map[string][]string, len(s.subscribers))
	for email, prefs := range s.subscribers {
		copied[email] = prefs
	}
	s.mu.RUnlock()
	metrics.Subscribers.Set(float64(len(copied)))

	if err := s.store.Save(ctx, copied); err != nil {
		log.Printf("subscribers: %v", apperrors.Wrap(apperrors.CodePersistenceFailure, "save subscribers", err))
	}
}
