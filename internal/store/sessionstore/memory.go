package sessionstore

import (
	"context"
	"sort"
	"sync"

	"github.com/orbitgw/orbit/internal/domain"
)

// MemoryBackend is the default single-node Backend.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	messages map[string][]domain.Message
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		sessions: map[string]*domain.Session{},
		messages: map[string][]domain.Message{},
	}
}

func (m *MemoryBackend) Append(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)

	return nil
}

func (m *MemoryBackend) Recent(_ context.Context, sessionID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.messages[sessionID]
	if limit <= 0 || limit >= len(all) {
		out := make([]domain.Message, len(all))
		copy(out, all)

		return out, nil
	}

	out := make([]domain.Message, limit)
	copy(out, all[len(all)-limit:])

	return out, nil
}

func (m *MemoryBackend) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.messages, sessionID)

	if sess, ok := m.sessions[sessionID]; ok {
		sess.MessageCount = 0
	}

	return nil
}

// PruneOlderThan drops the oldest non-system messages until at most keepLast
// remain, preserving relative order (spec §4.8).
func (m *MemoryBackend) PruneOlderThan(_ context.Context, sessionID string, keepLast int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.messages[sessionID]
	if len(all) <= keepLast {
		return nil
	}

	var system, rest []domain.Message

	for _, msg := range all {
		if msg.Role == domain.RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	overflow := len(rest) - (keepLast - len(system))
	if overflow > 0 {
		rest = rest[overflow:]
	}

	merged := append(append([]domain.Message{}, system...), rest...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Ordinal < merged[j].Ordinal })

	m.messages[sessionID] = merged

	return nil
}

func (m *MemoryBackend) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	cp := *sess

	return &cp, nil
}

func (m *MemoryBackend) UpsertSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.sessions[s.SessionID] = &cp

	return nil
}
