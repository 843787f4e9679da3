package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/infra"
)

var (
	ErrNoImage  = errors.New("no image uploaded")
	ErrNoDesign = errors.New("no design type selected")
)

// Outcome is the result of the most recent generation in a session.
type Outcome struct {
	Image       *domain.Image
	Err         error
	Repairable  bool
	CompletedAt time.Time
}

// Session is the state a single UI works against: the current source image,
// the user's selections and the last outcome.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	source       domain.SourceImage
	design       domain.DesignType
	style        domain.MockupStyle
	outcome      Outcome
	lastActivity time.Time

	busy *semaphore.Weighted
}

func newSession(src domain.SourceImage, now time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		source:       src,
		style:        domain.DefaultStyle,
		lastActivity: now,
		busy:         semaphore.NewWeighted(1),
	}
}

// Source returns the current source image.
func (s *Session) Source() domain.SourceImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// ReplaceSource swaps the source image without touching selections or outcome.
func (s *Session) ReplaceSource(src domain.SourceImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
}

// SetUpload installs a freshly uploaded image and clears the previous outcome.
func (s *Session) SetUpload(src domain.SourceImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
	s.outcome = Outcome{}
}

func (s *Session) SetDesign(d domain.DesignType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.design = d
}

func (s *Session) SetStyle(st domain.MockupStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = st
}

func (s *Session) Design() domain.DesignType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.design
}

func (s *Session) Style() domain.MockupStyle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.style
}

// Request assembles a generation request from the current state.
func (s *Session) Request() (domain.GenerationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.source.Empty() {
		return domain.GenerationRequest{}, ErrNoImage
	}
	if !s.design.Valid() {
		return domain.GenerationRequest{}, ErrNoDesign
	}
	req := domain.GenerationRequest{
		Source: s.source,
		Design: s.design,
		Layout: s.source.Layout,
		Style:  s.style,
	}
	if err := req.Validate(); err != nil {
		return domain.GenerationRequest{}, err
	}
	return req, nil
}

// RecordSuccess stores a rendered mockup and withdraws any repair offer.
func (s *Session) RecordSuccess(img domain.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = Outcome{Image: &img, CompletedAt: time.Now().UTC()}
}

// RecordFailure stores err. A repair is offered only when repairable is set
// and err is a safety block.
func (s *Session) RecordFailure(err error, repairable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = Outcome{
		Err:         err,
		Repairable:  repairable && domain.IsSafetyBlocked(err),
		CompletedAt: time.Now().UTC(),
	}
}

// Outcome returns the last recorded outcome.
func (s *Session) Outcome() Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

// RepairAvailable reports whether the last failure may be repaired.
func (s *Session) RepairAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome.Repairable
}

// TryBegin claims the session for one operation. It never blocks; callers
// must invoke the returned release func exactly once.
func (s *Session) TryBegin() (func(), error) {
	if !s.busy.TryAcquire(1) {
		return nil, domain.ErrBusy
	}
	var once sync.Once
	return func() { once.Do(func() { s.busy.Release(1) }) }, nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Store keeps sessions in memory. Nothing is persisted.
type Store struct {
	ttl     time.Duration
	now     func() time.Time
	logger  *infra.Logger
	onEvict func(id string)

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
// A non-positive ttl disables expiry.
func NewStore(ttl time.Duration, logger *infra.Logger) *Store {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// OnEvict registers a callback invoked after a session is removed.
func (s *Store) OnEvict(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Create starts a session around an uploaded image.
func (s *Store) Create(src domain.SourceImage) *Session {
	sess := newSession(src, s.now())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	s.logger.Debug().Str("session_id", sess.ID).Str("layout", string(src.Layout)).Msg("session: created")
	return sess
}

// Get returns the session and refreshes its activity time.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	sess.touch(s.now())
	return sess, nil
}

// Delete removes a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	onEvict := s.onEvict
	s.mu.Unlock()
	if ok && onEvict != nil {
		onEvict(id)
	}
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle for longer than the ttl. Sessions with an
// operation in flight are kept.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if !sess.idleSince().Before(cutoff) {
			continue
		}
		if !sess.busy.TryAcquire(1) {
			continue
		}
		sess.busy.Release(1)
		delete(s.sessions, id)
		expired = append(expired, id)
	}
	onEvict := s.onEvict
	s.mu.Unlock()

	for _, id := range expired {
		if onEvict != nil {
			onEvict(id)
		}
		s.logger.Info().Str("session_id", id).Msg("session: expired")
	}
	return len(expired)
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug().Int("evicted", n).Int("remaining", s.Len()).Msg("session: sweep")
			}
		}
	}
}
