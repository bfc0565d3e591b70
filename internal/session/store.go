// Package session keeps one Analytics per browser session, keyed by a
// cookie, and expires idle sessions.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const CookieName = "sales_session"

// Factory builds the Analytics for a new session, typically a fork of the
// configured fixed dataset loaded once at startup.
type Factory func(ctx context.Context) *services.Analytics

type entry struct {
	analytics *services.Analytics
	lastSeen  time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
	config   config.SessionConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewStore(cfg config.SessionConfig, factory Factory, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		factory:  factory,
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Create starts a new session and returns its ID. When the store is full
// the least recently used sessions are evicted to make room.
func (s *Store) Create(ctx context.Context) (string, *services.Analytics) {
	id := uuid.NewString()
	a := s.factory(ctx)

	s.mu.Lock()
	var evicted []string
	for s.config.Max > 0 && len(s.sessions) >= s.config.Max {
		evicted = append(evicted, s.evictOldestLocked())
	}
	s.sessions[id] = &entry{analytics: a, lastSeen: s.now()}
	count := len(s.sessions)
	s.mu.Unlock()

	s.setActive(count)
	if len(evicted) > 0 {
		s.logger.Warn("session limit reached, evicted least recently used",
			"evicted", evicted,
			"max_sessions", s.config.Max,
		)
	}
	s.logger.Debug("session created", "session_id", id, "active_sessions", count)
	return id, a
}

func (s *Store) evictOldestLocked() string {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range s.sessions {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	delete(s.sessions, oldestID)
	return oldestID
}

// Get returns the session's Analytics and marks it as recently used.
func (s *Store) Get(id string) (*services.Analytics, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.analytics, true
}

// Replace swaps the Analytics held by an existing session.
func (s *Store) Replace(id string, a *services.Analytics) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return false
	}
	e.analytics = a
	e.lastSeen = s.now()
	return true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()
	s.setActive(count)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL and reports how many
// were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.config.TTL)

	s.mu.Lock()
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	s.setActive(count)
	if removed > 0 {
		s.logger.Info("expired idle sessions", "removed", removed, "active_sessions", count)
	}
	return removed
}

// Run sweeps expired sessions until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) setActive(count int) {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(count))
	}
}
