// Package sessionstore implements the Conversation History Store (spec
// §4.8): session-scoped, bounded message persistence serialized per session
// so ordinal assignment stays monotonic under concurrency (spec §5c),
// grounded on axonhub's persistRequestMiddleware write-path shape.
package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/orbitgw/orbit/internal/domain"
)

// Backend is the durable storage a Store delegates to; it must be authoritative
// across server restarts (spec §4.8).
type Backend interface {
	Append(ctx context.Context, msg domain.Message) error
	Recent(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	Clear(ctx context.Context, sessionID string) error
	// PruneOlderThan deletes non-system messages beyond keepLast, oldest first.
	PruneOlderThan(ctx context.Context, sessionID string, keepLast int) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	UpsertSession(ctx context.Context, s *domain.Session) error
}

// perSessionLock serializes Append calls per session id (spec: "a single
// session processes requests one at a time at the persistence boundary")
// while letting unrelated sessions proceed fully in parallel.
type perSessionLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPerSessionLock() *perSessionLock {
	return &perSessionLock{locks: map[string]*sync.Mutex{}}
}

func (p *perSessionLock) get(sessionID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[sessionID] = l
	}

	return l
}

// Store is the facade every pipeline invocation uses. It owns the per-session
// serialization; Backend implementations need not be concurrency-safe across
// different ordinal writers for the same session.
type Store struct {
	backend Backend
	locks   *perSessionLock

	maxSessionMessages int
}

func New(backend Backend, maxSessionMessages int) *Store {
	return &Store{backend: backend, locks: newPerSessionLock(), maxSessionMessages: maxSessionMessages}
}

// EnsureSession creates the session record on first contact, or touches
// LastActivityAt if it already exists (spec §3 Session lifecycle).
func (s *Store) EnsureSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.backend.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if sess == nil {
		sess = &domain.Session{SessionID: sessionID, CreatedAt: now, LastActivityAt: now}
	} else {
		sess.LastActivityAt = now
	}

	if err := s.backend.UpsertSession(ctx, sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// Recent loads the last limit messages in order (spec §4.7 step 2).
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	return s.backend.Recent(ctx, sessionID, limit)
}

// Append assigns the next ordinal and writes the message, serialized per
// session so ordinals never collide across concurrent requests on the same
// session (spec invariant: strictly increasing, no gaps, no duplicates).
func (s *Store) Append(ctx context.Context, sessionID string, role domain.Role, content string, blocked bool) (int64, error) {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	recent, err := s.backend.Recent(ctx, sessionID, 1)
	if err != nil {
		return 0, err
	}

	var next int64 = 1
	if len(recent) > 0 {
		next = recent[len(recent)-1].Ordinal + 1
	}

	msg := domain.Message{
		SessionID: sessionID,
		Ordinal:   next,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Blocked:   blocked,
	}

	if err := s.backend.Append(ctx, msg); err != nil {
		return 0, err
	}

	sess, err := s.backend.GetSession(ctx, sessionID)
	if err == nil && sess != nil {
		sess.MessageCount++
		sess.LastActivityAt = msg.CreatedAt
		_ = s.backend.UpsertSession(ctx, sess)

		if s.maxSessionMessages > 0 && sess.MessageCount > s.maxSessionMessages {
			_ = s.backend.PruneOlderThan(ctx, sessionID, s.maxSessionMessages)
		}
	}

	return next, nil
}

// AppendTurn appends the user message then the assistant message under the
// session lock, so no other Append, AppendTurn, Clear or Prune on the same
// session interleaves with the pair and they get consecutive ordinals. The
// two are separate backend appends: if the assistant append fails, the user
// message stays stored and the error is returned. Recent does not take the
// session lock, so a concurrent Recent can see the user message alone.
func (s *Store) AppendTurn(ctx context.Context, sessionID, userContent, assistantContent string, assistantBlocked bool) error {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	recent, err := s.backend.Recent(ctx, sessionID, 1)
	if err != nil {
		return err
	}

	next := int64(1)
	if len(recent) > 0 {
		next = recent[len(recent)-1].Ordinal + 1
	}

	now := time.Now()
	userMsg := domain.Message{SessionID: sessionID, Ordinal: next, Role: domain.RoleUser, Content: userContent, CreatedAt: now}
	asstMsg := domain.Message{SessionID: sessionID, Ordinal: next + 1, Role: domain.RoleAssistant, Content: assistantContent, CreatedAt: now, Blocked: assistantBlocked}

	if err := s.backend.Append(ctx, userMsg); err != nil {
		return err
	}

	if err := s.backend.Append(ctx, asstMsg); err != nil {
		return err
	}

	sess, err := s.backend.GetSession(ctx, sessionID)
	if err == nil && sess != nil {
		sess.MessageCount += 2
		sess.LastActivityAt = now
		_ = s.backend.UpsertSession(ctx, sess)

		if s.maxSessionMessages > 0 && sess.MessageCount > s.maxSessionMessages {
			_ = s.backend.PruneOlderThan(ctx, sessionID, s.maxSessionMessages)
		}
	}

	return nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return s.backend.Clear(ctx, sessionID)
}

func (s *Store) Prune(ctx context.Context, sessionID string, keepLast int) error {
	lock := s.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return s.backend.PruneOlderThan(ctx, sessionID, keepLast)
}
