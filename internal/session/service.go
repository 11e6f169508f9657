package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/copyscan/internal/assessment"
	"github.com/kdimtricp/copyscan/internal/metrics"
	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/progress"
	"github.com/kdimtricp/copyscan/internal/storage"
)

// ReferenceFactory opens the reference list backing one session.
type ReferenceFactory func(sessionID string) patterns.ReferenceRepository

// Purger is implemented by reference repositories that can drop a whole
// session's rows.
type Purger interface {
	Purge(ctx context.Context) error
}

type Config struct {
	// StageTimeScale multiplies progress stage durations. Zero is instant.
	StageTimeScale float64
	// MaxKeywords bounds each crowdsourced store. Zero is unbounded.
	MaxKeywords int
}

type Service struct {
	engine     *assessment.Engine
	storage    storage.Storage
	references ReferenceFactory
	config     Config
	logger     *slog.Logger

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

func NewService(
	engine *assessment.Engine,
	storageService storage.Storage,
	references ReferenceFactory,
	config Config,
	logger *slog.Logger,
) *Service {
	if references == nil {
		references = func(string) patterns.ReferenceRepository {
			return patterns.NewMemoryReferences()
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		engine:     engine,
		storage:    storageService,
		references: references,
		config:     config,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

func (s *Service) CreateSession(variant assessment.Variant) *Session {
	id := uuid.New().String()

	session := &Session{
		ID:        id,
		Variant:   variant,
		CreatedAt: time.Now(),
		engine:    s.engine,
		storage:   s.storage,
		stager:    progress.NewStager(s.config.StageTimeScale),
		logger:    s.logger.With("session", id, "variant", string(variant)),
		status:    StatusIdle,
		subs:      make(map[chan Update]struct{}),
	}

	if variant == assessment.VariantCrowdsourced {
		store := patterns.SeedDefaults()
		store.MaxKeywords = s.config.MaxKeywords
		session.refs = s.references(id)
		session.library = patterns.NewLibrary(store, session.refs, s.engine)
	} else {
		session.catalog = patterns.StaticCatalog()
	}

	s.sessionsMu.Lock()
	s.sessions[id] = session
	s.sessionsMu.Unlock()

	metrics.ActiveSessions.Inc()
	session.logger.Info("session created")
	return session
}

func (s *Service) GetSession(sessionID string) (*Session, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	session, exists := s.sessions[sessionID]
	return session, exists
}

// Lookup is GetSession with an error for unknown ids.
func (s *Service) Lookup(sessionID string) (*Session, error) {
	session, ok := s.GetSession(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	return session, nil
}

// DeleteSession stops any running analysis and releases the session's
// candidate blob and reference rows.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.sessionsMu.Lock()
	session, exists := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.sessionsMu.Unlock()

	if !exists {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}

	metrics.ActiveSessions.Dec()
	return session.close(ctx)
}

// Close discards every session.
func (s *Service) Close(ctx context.Context) {
	s.sessionsMu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessionsMu.RUnlock()

	for _, id := range ids {
		if err := s.DeleteSession(ctx, id); err != nil {
			s.logger.Warn("failed to discard session", "session", id, "error", err)
		}
	}
}

func (s *Service) Len() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}
