package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orbitgw/orbit/internal/domain"
)

// RedisBackend persists keys and prompts in Redis, for multi-node
// deployments where the cache layer in Store must stay authoritative across
// process restarts. Keyed under "orbit:apikey:<token>" and
// "orbit:prompt:<id>", with a secondary set for listing.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, tokenPrefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: tokenPrefix}
}

func (r *RedisBackend) keyOf(token string) string  { return "orbit:apikey:" + token }
func (r *RedisBackend) promptOf(id string) string  { return "orbit:prompt:" + id }

func (r *RedisBackend) CreateKey(ctx context.Context, clientName, adapterName, promptID string) (*domain.ApiKey, error) {
	key := &domain.ApiKey{
		Token:          newToken(r.prefix),
		ClientName:     clientName,
		AdapterName:    adapterName,
		SystemPromptID: promptID,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	key.ID = key.Token

	if err := r.save(ctx, key); err != nil {
		return nil, err
	}

	if err := r.client.SAdd(ctx, "orbit:apikeys", key.Token).Err(); err != nil {
		return nil, err
	}

	return key, nil
}

func (r *RedisBackend) save(ctx context.Context, key *domain.ApiKey) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.keyOf(key.Token), raw, 0).Err()
}

func (r *RedisBackend) Lookup(ctx context.Context, token string) (*domain.ApiKey, error) {
	raw, err := r.client.Get(ctx, r.keyOf(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnknownToken
	}

	if err != nil {
		return nil, err
	}

	var key domain.ApiKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, err
	}

	return &key, nil
}

func (r *RedisBackend) List(ctx context.Context) ([]*domain.ApiKey, error) {
	tokens, err := r.client.SMembers(ctx, "orbit:apikeys").Result()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ApiKey, 0, len(tokens))

	for _, t := range tokens {
		k, err := r.Lookup(ctx, t)
		if err != nil {
			continue
		}

		out = append(out, k)
	}

	return out, nil
}

func (r *RedisBackend) mutate(ctx context.Context, token string, fn func(*domain.ApiKey)) error {
	key, err := r.Lookup(ctx, token)
	if err != nil {
		return err
	}

	fn(key)

	return r.save(ctx, key)
}

func (r *RedisBackend) Rename(ctx context.Context, token, clientName string) error {
	return r.mutate(ctx, token, func(k *domain.ApiKey) { k.ClientName = clientName })
}

func (r *RedisBackend) Deactivate(ctx context.Context, token string) error {
	return r.mutate(ctx, token, func(k *domain.ApiKey) { k.Active = false })
}

func (r *RedisBackend) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.keyOf(token)).Err(); err != nil {
		return err
	}

	return r.client.SRem(ctx, "orbit:apikeys", token).Err()
}

func (r *RedisBackend) Touch(ctx context.Context, token string, at time.Time) error {
	return r.mutate(ctx, token, func(k *domain.ApiKey) { k.LastUsedAt = at })
}

func (r *RedisBackend) CreatePrompt(ctx context.Context, p *domain.SystemPrompt) error {
	if p.ID == "" {
		p.ID = newToken("prompt_")
	}

	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.promptOf(p.ID), raw, 0).Err(); err != nil {
		return err
	}

	return r.client.SAdd(ctx, "orbit:prompts", p.ID).Err()
}

func (r *RedisBackend) GetPrompt(ctx context.Context, id string) (*domain.SystemPrompt, error) {
	raw, err := r.client.Get(ctx, r.promptOf(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnknownToken
	}

	if err != nil {
		return nil, err
	}

	var p domain.SystemPrompt
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *RedisBackend) ListPrompts(ctx context.Context) ([]*domain.SystemPrompt, error) {
	ids, err := r.client.SMembers(ctx, "orbit:prompts").Result()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.SystemPrompt, 0, len(ids))

	for _, id := range ids {
		p, err := r.GetPrompt(ctx, id)
		if err != nil {
			continue
		}

		out = append(out, p)
	}

	return out, nil
}

func (r *RedisBackend) UpdatePrompt(ctx context.Context, id, text string) (*domain.SystemPrompt, error) {
	p, err := r.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Text = text
	p.Version++
	p.UpdatedAt = time.Now()

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	if err := r.client.Set(ctx, r.promptOf(id), raw, 0).Err(); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *RedisBackend) DeletePrompt(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.promptOf(id)).Err(); err != nil {
		return err
	}

	return r.client.SRem(ctx, "orbit:prompts", id).Err()
}

func (r *RedisBackend) AssociatePrompt(ctx context.Context, token, promptID string) error {
	if _, err := r.GetPrompt(ctx, promptID); err != nil {
		return err
	}

	return r.mutate(ctx, token, func(k *domain.ApiKey) { k.SystemPromptID = promptID })
}
