package keystore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitgw/orbit/internal/domain"
)

// MemoryBackend is a process-local Backend, the default for single-node
// deployments and for tests. It is authoritative across restarts only for
// the lifetime of the process (no disk persistence).
type MemoryBackend struct {
	tokenPrefix string

	mu      sync.RWMutex
	keys    map[string]*domain.ApiKey // token -> key
	prompts map[string]*domain.SystemPrompt
}

func NewMemoryBackend(tokenPrefix string) *MemoryBackend {
	return &MemoryBackend{
		tokenPrefix: tokenPrefix,
		keys:        map[string]*domain.ApiKey{},
		prompts:     map[string]*domain.SystemPrompt{},
	}
}

func (m *MemoryBackend) CreateKey(_ context.Context, clientName, adapterName, promptID string) (*domain.ApiKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := &domain.ApiKey{
		ID:             uuid.NewString(),
		Token:          newToken(m.tokenPrefix),
		ClientName:     clientName,
		AdapterName:    adapterName,
		SystemPromptID: promptID,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	m.keys[key.Token] = key

	return key, nil
}

func (m *MemoryBackend) Lookup(_ context.Context, token string) (*domain.ApiKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[token]
	if !ok {
		return nil, ErrUnknownToken
	}

	cp := *key

	return &cp, nil
}

func (m *MemoryBackend) List(_ context.Context) ([]*domain.ApiKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.ApiKey, 0, len(m.keys))
	for _, k := range m.keys {
		cp := *k
		out = append(out, &cp)
	}

	return out, nil
}

func (m *MemoryBackend) Rename(_ context.Context, token, clientName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[token]
	if !ok {
		return ErrUnknownToken
	}

	key.ClientName = clientName

	return nil
}

func (m *MemoryBackend) Deactivate(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[token]
	if !ok {
		return ErrUnknownToken
	}

	key.Active = false

	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.keys[token]; !ok {
		return ErrUnknownToken
	}

	delete(m.keys, token)

	return nil
}

func (m *MemoryBackend) Touch(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[token]
	if !ok {
		return ErrUnknownToken
	}

	key.LastUsedAt = at

	return nil
}

func (m *MemoryBackend) CreatePrompt(_ context.Context, p *domain.SystemPrompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.prompts[p.ID] = &cp

	return nil
}

func (m *MemoryBackend) GetPrompt(_ context.Context, id string) (*domain.SystemPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrUnknownToken
	}

	cp := *p

	return &cp, nil
}

func (m *MemoryBackend) ListPrompts(_ context.Context) ([]*domain.SystemPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.SystemPrompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		cp := *p
		out = append(out, &cp)
	}

	return out, nil
}

// UpdatePrompt bumps UpdatedAt and Version, per spec §3 ("Immutable once
// associated with a live key except through an explicit update operation
// that bumps updated_at").
func (m *MemoryBackend) UpdatePrompt(_ context.Context, id, text string) (*domain.SystemPrompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrUnknownToken
	}

	p.Text = text
	p.Version++
	p.UpdatedAt = time.Now()
	cp := *p

	return &cp, nil
}

func (m *MemoryBackend) DeletePrompt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prompts[id]; !ok {
		return ErrUnknownToken
	}

	delete(m.prompts, id)

	return nil
}

func (m *MemoryBackend) AssociatePrompt(_ context.Context, token, promptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[token]
	if !ok {
		return ErrUnknownToken
	}

	if _, ok := m.prompts[promptID]; !ok {
		return ErrUnknownToken
	}

	key.SystemPromptID = promptID

	return nil
}
