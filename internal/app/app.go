// Package app wires every collaborator the chat pipeline needs — config,
// stores, registries, supervisor, moderator chain — into one long-lived
// object, grounded on axonhub's internal/server/dependencies.Module
// (construct-once, inject-by-handle, no module-level mutable state on the
// hot path, spec §9 design note).
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/orbitgw/orbit/internal/config"
	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/inference"
	"github.com/orbitgw/orbit/internal/log"
	"github.com/orbitgw/orbit/internal/moderator"
	"github.com/orbitgw/orbit/internal/pipeline"
	"github.com/orbitgw/orbit/internal/retriever"
	"github.com/orbitgw/orbit/internal/store/keystore"
	"github.com/orbitgw/orbit/internal/store/sessionstore"
	"github.com/orbitgw/orbit/internal/store/userstore"
	"github.com/orbitgw/orbit/internal/supervisor"
)

// App owns every long-lived collaborator of the ORBIT process. Exactly one
// App is constructed per process lifetime (spec §9: "construct a server
// object that owns the registries, stores, and supervisor").
type App struct {
	Config config.Config

	Keys       *keystore.Store
	Sessions   *sessionstore.Store
	Users      *userstore.Store
	Retrievers *retriever.Registry
	Inference  *inference.Registry
	Supervisor *supervisor.Supervisor
	Pipeline   *pipeline.Pipeline

	adapters map[string]domain.Adapter

	closers []func() error
}

// New builds the whole collaborator graph from cfg. It never blocks on the
// network for anything beyond opening (not querying) SQL connection pools;
// retriever/provider datasource reachability is verified lazily on first
// use, consistent with spec §4.2's "never blocks on the network once
// warmed" resolve() guarantee applying process-wide at startup too.
func New(cfg config.Config) (*App, error) {
	log.SetGlobalConfig(cfg.Log)

	a := &App{Config: cfg, adapters: map[string]domain.Adapter{}}

	for _, spec := range cfg.Adapters {
		a.adapters[spec.Name] = toDomainAdapter(spec)
	}

	if err := a.buildKeyStore(cfg); err != nil {
		return nil, fmt.Errorf("build key store: %w", err)
	}

	if err := a.buildSessionStore(cfg); err != nil {
		return nil, fmt.Errorf("build session store: %w", err)
	}

	if err := a.seedPrompts(cfg); err != nil {
		return nil, fmt.Errorf("seed prompts: %w", err)
	}

	a.Users = userstore.New(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	a.Supervisor = supervisor.New(supervisor.Policy{
		FOpen:       cfg.Supervisor.FailureThreshold,
		Cooldown:    cfg.Supervisor.Cooldown,
		MaxRetries:  cfg.Supervisor.MaxRetries,
		BaseBackoff: cfg.Supervisor.BaseBackoff,
		MaxBackoff:  cfg.Supervisor.MaxBackoff,
	})

	a.Retrievers = retriever.NewRegistry(128)
	a.registerRetrieverFactories(cfg)

	a.Inference = inference.NewRegistry()
	a.registerInferenceFactories()

	inputChain, outputChain := buildModeratorChains(cfg.Moderators)

	a.Pipeline = &pipeline.Pipeline{
		Keys:                 a.Keys,
		Sessions:             a.Sessions,
		Retrievers:           a.Retrievers,
		Inference:            a.Inference,
		Adapters:             a.AdapterLookup,
		Providers:            a.providerLookup(cfg),
		InputModeration:      inputChain,
		OutputModeration:     outputChain,
		Supervisor:           a.Supervisor,
		MaxHistoryMessages:   cfg.Session.MaxHistoryMessages,
		ReservedOutputTokens: cfg.Pipeline.ReservedOutputTokens,
		NumCtx:               4096,
		RefusalMessage:       cfg.Pipeline.RefusalMessage,
	}

	return a, nil
}

// AdapterLookup resolves a static, startup-enumerated Adapter by name
// (spec §3: "the registry is append-only until restart").
func (a *App) AdapterLookup(name string) (domain.Adapter, bool) {
	ad, ok := a.adapters[name]
	return ad, ok
}

// AdapterExists backs keystore's AdapterLookup callback (spec §4.2: "adapter
// name unknown in registry ⇒ misconfigured").
func (a *App) AdapterExists(name string) bool {
	_, ok := a.adapters[name]
	return ok
}

// Adapters returns every statically enumerated adapter, for the admin
// surface and /admin/system-status.
func (a *App) Adapters() []domain.Adapter {
	out := make([]domain.Adapter, 0, len(a.adapters))
	for _, ad := range a.adapters {
		out = append(out, ad)
	}

	return out
}

func toDomainAdapter(spec config.AdapterSpec) domain.Adapter {
	kind := domain.AdapterKindPassthrough
	if spec.Kind == "retriever" {
		kind = domain.AdapterKindRetriever
	}

	mapping := domain.DistanceMappingCosine
	if spec.DistanceMapping == string(domain.DistanceMappingExponential) {
		mapping = domain.DistanceMappingExponential
	}

	return domain.Adapter{
		Name:              spec.Name,
		Kind:              kind,
		Datasource:        spec.Datasource,
		AdapterFamily:     spec.AdapterFamily,
		ImplementationRef: spec.ImplementationRef,
		Config: domain.AdapterConfig{
			ConfidenceThreshold:   spec.ConfidenceThreshold,
			MaxResults:            spec.MaxResults,
			ReturnResults:         spec.ReturnResults,
			EmbeddingProvider:     spec.EmbeddingProvider,
			DistanceMapping:       mapping,
			DistanceScalingFactor: spec.DistanceScalingFactor,
		},
		InferenceProvider: spec.InferenceProvider,
		DefaultPromptID:   spec.DefaultPromptID,
	}
}

func (a *App) buildKeyStore(cfg config.Config) error {
	var backend keystore.Backend

	switch cfg.KeyStore.Backend {
	case "sqlite":
		b, err := keystore.NewSQLiteBackend(cfg.KeyStore.DSN, cfg.KeyStore.TokenPrefix)
		if err != nil {
			return err
		}

		backend = b
		a.closers = append(a.closers, b.Close)
	case "redis":
		client, err := newRedisClient(cfg.KeyStore.DSN)
		if err != nil {
			return err
		}

		backend = keystore.NewRedisBackend(client, cfg.KeyStore.TokenPrefix)
		a.closers = append(a.closers, client.Close)
	default:
		backend = keystore.NewMemoryBackend(cfg.KeyStore.TokenPrefix)
	}

	a.Keys = keystore.New(backend, a.AdapterExists, cfg.KeyStore.TokenPrefix, cfg.KeyStore.CacheTTL)

	return nil
}

func (a *App) buildSessionStore(cfg config.Config) error {
	var backend sessionstore.Backend

	switch cfg.Session.Backend {
	case "sqlite":
		b, err := sessionstore.NewSQLiteBackend(cfg.Session.DSN)
		if err != nil {
			return err
		}

		backend = b
		a.closers = append(a.closers, b.Close)
	default:
		backend = sessionstore.NewMemoryBackend()
	}

	a.Sessions = sessionstore.New(backend, cfg.Session.MaxSessionMessages)

	return nil
}

// seedPrompts loads every file-configured PromptSpec into the key store's
// backend at startup, so adapters' default_prompt_id references resolve
// without a separate admin API call (spec §3 SystemPrompt).
func (a *App) seedPrompts(cfg config.Config) error {
	ctx := context.Background()

	for _, p := range cfg.Prompts {
		if existing, err := a.Keys.GetPrompt(ctx, p.ID); err == nil && existing != nil {
			continue
		}

		if err := a.Keys.CreatePrompt(ctx, &domain.SystemPrompt{ID: p.ID, Name: p.Name, Text: p.Text}); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) providerLookup(cfg config.Config) pipeline.ProviderLookup {
	providers := map[string]inference.Provider{}

	for _, p := range cfg.Providers {
		providers[p.Name] = inference.Provider{Name: p.Name, Kind: p.Kind, BaseURL: p.BaseURL, APIKey: p.APIKey, Model: p.Model}
	}

	return func(name string) (inference.Provider, bool) {
		p, ok := providers[name]
		return p, ok
	}
}

func buildModeratorChains(specs []config.ModeratorSpec) (*moderator.Chain, *moderator.Chain) {
	mods := make([]moderator.Moderator, 0, len(specs))

	for _, spec := range specs {
		switch spec.Kind {
		case "rule":
			mods = append(mods, moderator.NewRuleBased(moderator.RuleBasedConfig{Name: spec.Name, BlockedTerms: spec.BlockedTerms}))
		case "openai_moderation", "anthropic_classifier", "llm_guard":
			mods = append(mods, moderator.NewExternal(moderator.ExternalConfig{
				Name:      spec.Name,
				BaseURL:   spec.BaseURL,
				APIKey:    spec.APIKey,
				Threshold: spec.Threshold,
			}))
		}
	}

	// The same ordered chain runs on both sides of a turn (spec §4.5): each
	// moderator receives the direction and decides how to apply itself.
	chain := moderator.NewChain(mods...)

	return chain, chain
}

// Close releases every owned connection pool (spec §4.2/§4.8 "authoritative
// across restarts" stores that hold real connections).
func (a *App) Close() error {
	var firstErr error

	for _, closer := range a.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// sqlOpen is shared by the retriever factories below (internal/app/retrievers.go).
func sqlOpen(dialect, dsn string) (*sql.DB, string, error) {
	switch dialect {
	case "postgres":
		return openWith("pgx", dsn)
	case "mysql":
		return openWith("mysql", dsn)
	default:
		return openWith("sqlite3", dsn)
	}
}

func openWith(driver, dsn string) (*sql.DB, string, error) {
	db, err := sql.Open(driver, dsn)

	return db, driver, err
}
