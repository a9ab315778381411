// Package keystore implements the API-Key & Prompt Store (spec §4.2): the
// hot-path resolve(token) lookup backed by a write-through in-memory cache,
// grounded on axonhub's biz.AuthService / api_key cache pattern, layered
// with eko/gocache the way axonhub layers patrickmn/go-cache + redis.
package keystore

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"sync"
	"time"

	gocache_lib "github.com/eko/gocache/lib/v4/cache"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/log"
	"github.com/orbitgw/orbit/internal/orbiterr"
)

// ErrUnknownToken is returned by Backend.Lookup when the token does not exist.
var ErrUnknownToken = errors.New("keystore: unknown token")

// Resolved is the hot-path lookup result (spec §4.2 resolve()).
type Resolved struct {
	AdapterName    string
	SystemPromptID string
	Active         bool
}

// Backend is the durable storage a Store delegates to. It is never called on
// the hot path once the cache is warm.
type Backend interface {
	CreateKey(ctx context.Context, clientName, adapterName, promptID string) (*domain.ApiKey, error)
	Lookup(ctx context.Context, token string) (*domain.ApiKey, error)
	List(ctx context.Context) ([]*domain.ApiKey, error)
	Rename(ctx context.Context, token, clientName string) error
	Deactivate(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
	Touch(ctx context.Context, token string, at time.Time) error

	CreatePrompt(ctx context.Context, p *domain.SystemPrompt) error
	GetPrompt(ctx context.Context, id string) (*domain.SystemPrompt, error)
	ListPrompts(ctx context.Context) ([]*domain.SystemPrompt, error)
	UpdatePrompt(ctx context.Context, id, text string) (*domain.SystemPrompt, error)
	DeletePrompt(ctx context.Context, id string) error
	AssociatePrompt(ctx context.Context, token, promptID string) error
}

// AdapterLookup answers whether a name exists in the (startup-enumerated)
// adapter registry, used to reject misconfigured keys eagerly.
type AdapterLookup func(name string) bool

// Store is the resolve-hot-path facade over Backend, warmed with an
// in-process cache (spec: "resolve MUST be O(1) under a bounded in-memory
// cache and MUST never block on the network once warmed").
type Store struct {
	backend     Backend
	adapterOK   AdapterLookup
	tokenPrefix string

	cache *gocache_lib.Cache[Resolved]
	sf    singleflight.Group // collapses concurrent cache-miss lookups for the same token

	mu         sync.RWMutex
	backendErr error // last warmup/refresh error; non-nil degrades to serving the cached snapshot
}

func New(backend Backend, adapterOK AdapterLookup, tokenPrefix string, ttl time.Duration) *Store {
	gc := gocache.New(ttl, ttl*2)
	cacheStore := gocache_store.NewGoCache(gc)

	return &Store{
		backend:     backend,
		adapterOK:   adapterOK,
		tokenPrefix: tokenPrefix,
		cache:       gocache_lib.New[Resolved](cacheStore),
	}
}

func newToken(prefix string) string {
	buf := make([]byte, 20)
	_, _ = rand.Read(buf)

	return prefix + strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf))
}

// CreateKey mints a new token and writes through to the backend and the cache.
func (s *Store) CreateKey(ctx context.Context, clientName, adapterName, promptID string) (string, error) {
	if !s.adapterOK(adapterName) {
		return "", orbiterr.New(orbiterr.KindConfig, "unknown adapter_name: "+adapterName)
	}

	if promptID != "" {
		prompt, err := s.backend.GetPrompt(ctx, promptID)
		if err != nil || prompt == nil {
			return "", orbiterr.New(orbiterr.KindConfig, "unknown system_prompt_id: "+promptID)
		}
	}

	key, err := s.backend.CreateKey(ctx, clientName, adapterName, promptID)
	if err != nil {
		return "", orbiterr.Wrap(orbiterr.KindConfig, "create key", err)
	}

	s.writeThrough(ctx, key)

	return key.Token, nil
}

// Resolve is the hot path: bounded in-memory cache, O(1), never blocks on
// the network once warmed. On backend failure after warmup it serves the
// cached snapshot and logs a warning rather than allowing an unknown key.
func (s *Store) Resolve(ctx context.Context, token string) (Resolved, error) {
	if r, err := s.cache.Get(ctx, token); err == nil {
		if !r.Active {
			return r, orbiterr.New(orbiterr.KindForbidden, "api key is inactive")
		}

		return r, nil
	}

	// Concurrent misses for the same token (e.g. a burst of requests racing
	// the cache warming up) collapse onto a single backend.Lookup call.
	v, err, _ := s.sf.Do(token, func() (any, error) {
		key, err := s.backend.Lookup(ctx, token)
		if err != nil {
			return nil, err
		}

		s.writeThrough(ctx, key)

		return key, nil
	})
	if err != nil {
		s.mu.Lock()
		s.backendErr = err
		s.mu.Unlock()

		if errors.Is(err, ErrUnknownToken) {
			return Resolved{}, orbiterr.New(orbiterr.KindAuth, "unknown api key")
		}

		log.Warn(ctx, "keystore backend lookup failed, no cached snapshot available", log.Cause(err))

		return Resolved{}, orbiterr.Wrap(orbiterr.KindAuth, "backend unavailable", err)
	}

	key := v.(*domain.ApiKey)

	r := Resolved{AdapterName: key.AdapterName, SystemPromptID: key.SystemPromptID, Active: key.Active}
	if !r.Active {
		return r, orbiterr.New(orbiterr.KindForbidden, "api key is inactive")
	}

	if !s.adapterOK(r.AdapterName) {
		return r, orbiterr.New(orbiterr.KindConfig, "adapter no longer registered: "+r.AdapterName)
	}

	return r, nil
}

func (s *Store) writeThrough(ctx context.Context, key *domain.ApiKey) {
	_ = s.cache.Set(ctx, key.Token, Resolved{
		AdapterName:    key.AdapterName,
		SystemPromptID: key.SystemPromptID,
		Active:         key.Active,
	})
}

// TouchAsync records last_used_at without blocking the caller (spec §4.7
// step 1: "Record last_used_at asynchronously").
func (s *Store) TouchAsync(ctx context.Context, token string) {
	go func() {
		if err := s.backend.Touch(context.WithoutCancel(ctx), token, time.Now()); err != nil {
			log.Warn(ctx, "failed to record api key last_used_at", log.Cause(err))
		}
	}()
}

func (s *Store) List(ctx context.Context) ([]*domain.ApiKey, error) {
	return s.backend.List(ctx)
}

// Status returns the durable record for a single token (spec §6 GET
// /admin/api-keys/{token}), bypassing the resolve cache since this is an
// admin-plane read, not the hot path.
func (s *Store) Status(ctx context.Context, token string) (*domain.ApiKey, error) {
	key, err := s.backend.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnknownToken) {
			return nil, orbiterr.New(orbiterr.KindAuth, "unknown api key")
		}

		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "key store unavailable", err)
	}

	return key, nil
}

func (s *Store) Rename(ctx context.Context, token, clientName string) error {
	if err := s.backend.Rename(ctx, token, clientName); err != nil {
		return err
	}

	_ = s.cache.Clear(ctx)

	return nil
}

// Deactivate is a soft delete: active=false, history retained (spec §3 invariant).
func (s *Store) Deactivate(ctx context.Context, token string) error {
	if err := s.backend.Deactivate(ctx, token); err != nil {
		return err
	}

	_ = s.cache.Clear(ctx)

	return nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.backend.Delete(ctx, token); err != nil {
		return err
	}

	_ = s.cache.Clear(ctx)

	return nil
}

func (s *Store) CreatePrompt(ctx context.Context, p *domain.SystemPrompt) error {
	return s.backend.CreatePrompt(ctx, p)
}

func (s *Store) GetPrompt(ctx context.Context, id string) (*domain.SystemPrompt, error) {
	return s.backend.GetPrompt(ctx, id)
}

func (s *Store) ListPrompts(ctx context.Context) ([]*domain.SystemPrompt, error) {
	return s.backend.ListPrompts(ctx)
}

// UpdatePrompt bumps UpdatedAt; prompts are otherwise immutable once bound
// to a live key (spec §3).
func (s *Store) UpdatePrompt(ctx context.Context, id, text string) (*domain.SystemPrompt, error) {
	return s.backend.UpdatePrompt(ctx, id, text)
}

func (s *Store) DeletePrompt(ctx context.Context, id string) error {
	return s.backend.DeletePrompt(ctx, id)
}

func (s *Store) AssociatePrompt(ctx context.Context, token, promptID string) error {
	if err := s.backend.AssociatePrompt(ctx, token, promptID); err != nil {
		return err
	}

	_ = s.cache.Clear(ctx)

	return nil
}
