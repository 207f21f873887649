// Package session owns the authenticated-user identity and its time-to-live.
// It is the single source of truth for "is the user logged in": every other
// component reads the session through Current, never from storage directly,
// so the expiry check is applied on every read.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"smartcash/internal/core"
	"smartcash/internal/log"
	"smartcash/internal/storage"
)

// ErrExpired marks a session that reached its expiry. The transition to the
// anonymous state is unconditional; sessions are never renewed.
var ErrExpired = errors.New("session expired")

// Session is a time-bounded proof of authentication held client-side.
type Session struct {
	User      core.User
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Storage persists at most one session record under a single well-known key.
type Storage interface {
	SaveSession(ctx context.Context, rec storage.SessionRecord) error
	LoadSession(ctx context.Context) (*storage.SessionRecord, error)
	DeleteSession(ctx context.Context) error
}

// Store holds at most one active session and guarantees it is never
// presented as valid past its expiry, either by the one-shot timer firing or
// by the check applied on every read.
type Store struct {
	storage Storage
	ttl     time.Duration
	logger  *log.Logger
	now     func() time.Time

	mu       sync.Mutex
	current  *Session
	timer    *time.Timer
	timerGen uint64
	handlers []func()
}

func NewStore(st Storage, ttl time.Duration, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Store{
		storage: st,
		ttl:     ttl,
		logger:  logger.WithComponent(log.ComponentSession),
		now:     time.Now,
	}
}

// OnExpire registers a handler invoked after the expiry timer forcibly
// clears the session. Handlers run outside the store's lock.
func (s *Store) OnExpire(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// Login constructs a new session for the given identity, persists it,
// replaces any prior session and arms the expiry timer. The session ends at
// issuedAt + TTL regardless of activity.
func (s *Store) Login(ctx context.Context, user core.User) (Session, error) {
	now := s.now()
	sess := Session{
		User:      user,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	rec := storage.SessionRecord{
		User:      user,
		IssuedAt:  sess.IssuedAt.UnixMilli(),
		ExpiresAt: sess.ExpiresAt.UnixMilli(),
	}
	if err := s.storage.SaveSession(ctx, rec); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	s.current = &sess
	s.armTimerLocked(s.ttl)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Session created",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, user.ID,
		log.FieldExpiresAt, sess.ExpiresAt.UnixMilli())
	return sess, nil
}

// UpdateUser swaps the identity inside the active session, keeping the
// issued-at and expiry untouched. A profile change never extends the TTL.
func (s *Store) UpdateUser(ctx context.Context, user core.User) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrExpired
	}
	s.current.User = user
	rec := storage.SessionRecord{
		User:      user,
		IssuedAt:  s.current.IssuedAt.UnixMilli(),
		ExpiresAt: s.current.ExpiresAt.UnixMilli(),
	}
	s.mu.Unlock()

	if err := s.storage.SaveSession(ctx, rec); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Session identity updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldUserID, user.ID)
	return nil
}

// Restore reads the persisted session at startup. An absent, corrupted or
// already-expired record is normalized to nil, clearing storage as a side
// effect; a record missing its expiry reads as already expired. A valid
// session re-arms the timer for the remaining duration.
func (s *Store) Restore(ctx context.Context) (*Session, error) {
	rec, err := s.storage.LoadSession(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	now := s.now()
	// Missing expiry fails closed, not open.
	if rec.ExpiresAt <= 0 || !now.Before(time.UnixMilli(rec.ExpiresAt)) {
		if err := s.storage.DeleteSession(ctx); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "Persisted session expired, cleared",
			log.FieldOperation, log.OpRestore,
			log.FieldUserID, rec.User.ID)
		return nil, nil
	}

	sess := Session{
		User:      rec.User,
		IssuedAt:  time.UnixMilli(rec.IssuedAt),
		ExpiresAt: time.UnixMilli(rec.ExpiresAt),
	}

	s.mu.Lock()
	s.current = &sess
	s.armTimerLocked(sess.ExpiresAt.Sub(now))
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Session restored",
		log.FieldOperation, log.OpRestore,
		log.FieldUserID, sess.User.ID,
		log.FieldExpiresAt, sess.ExpiresAt.UnixMilli())
	return &sess, nil
}

// Current returns the active session, or nil when anonymous. The expiry
// check runs on every call, so a session past its TTL is never handed out
// even if the timer has not fired yet (e.g. after a suspend).
func (s *Store) Current() *Session {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	if !s.now().Before(s.current.ExpiresAt) {
		s.clearLocked()
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.storage.DeleteSession(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to clear expired session",
				log.FieldOperation, log.OpExpire,
				log.FieldError, err.Error())
		}
		s.afterExpiry()
		return nil
	}
	sess := *s.current
	s.mu.Unlock()
	return &sess
}

// Logout clears persisted and in-memory state unconditionally. Safe to call
// when no session exists.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()

	if err := s.storage.DeleteSession(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Session cleared", log.FieldOperation, log.OpLogout)
	return nil
}

// Close cancels the expiry timer without touching persisted state.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// armTimerLocked replaces the pending expiry timer. The generation counter
// keeps a stale timer that already fired from clearing a newer session.
func (s *Store) armTimerLocked(d time.Duration) {
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(d, func() { s.expire(gen) })
}

func (s *Store) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) clearLocked() {
	s.current = nil
	s.stopTimerLocked()
}

// expire is the timer callback. It forcibly ends the session and signals
// observers even if no user interaction occurs.
func (s *Store) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || s.current == nil {
		s.mu.Unlock()
		return
	}
	user := s.current.User
	s.clearLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.storage.DeleteSession(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear expired session",
			log.FieldOperation, log.OpExpire,
			log.FieldError, err.Error())
	}

	s.logger.InfoContext(ctx, "Session expired",
		log.FieldOperation, log.OpExpire,
		log.FieldUserID, user.ID)
	s.afterExpiry()
}

func (s *Store) afterExpiry() {
	s.mu.Lock()
	handlers := make([]func(), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
