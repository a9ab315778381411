package app

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/orbitgw/orbit/internal/config"
	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/embedding"
	"github.com/orbitgw/orbit/internal/orbiterr"
	"github.com/orbitgw/orbit/internal/retriever"
	"github.com/orbitgw/orbit/internal/retriever/fileretriever"
	"github.com/orbitgw/orbit/internal/retriever/sqlretriever"
	"github.com/orbitgw/orbit/internal/retriever/vectorretriever"
)

// registerRetrieverFactories binds every retriever family/implementation
// pair this build ships to a.Retrievers (spec §9: "forbid runtime code
// loading" — only what's registered here is ever reachable).
func (a *App) registerRetrieverFactories(cfg config.Config) {
	sqlDatasources := make(map[string]config.SQLDatasourceSpec, len(cfg.SQLDatasources))
	for _, d := range cfg.SQLDatasources {
		sqlDatasources[d.Name] = d
	}

	vectorDatasources := make(map[string]config.VectorDatasourceSpec, len(cfg.VectorDatasources))
	for _, d := range cfg.VectorDatasources {
		vectorDatasources[d.Name] = d
	}

	embedders := make(map[string]config.EmbeddingProviderSpec, len(cfg.EmbeddingProviders))
	for _, e := range cfg.EmbeddingProviders {
		embedders[e.Name] = e
	}

	dbCache := &dbPool{conns: map[string]*sql.DB{}}

	sqlFactory := func(dialect string) retriever.Factory {
		return func(ctx context.Context, adapter domain.Adapter) (retriever.Retriever, error) {
			ds, ok := sqlDatasources[adapter.Datasource]
			if !ok {
				return nil, orbiterr.New(orbiterr.KindConfig, "no sql_datasources entry named "+adapter.Datasource)
			}

			db, err := dbCache.get(dialect, ds.DSN)
			if err != nil {
				return nil, orbiterr.Wrap(orbiterr.KindConfig, "open sql datasource "+ds.Name, err)
			}

			return sqlretriever.New(sqlretriever.Config{
				DB:                    db,
				Template:              sqlretriever.Template{SQL: ds.Query, Schema: schemaOf(ds.Schema)},
				QueryParam:            ds.QueryParam,
				DistanceMapping:       adapter.Config.DistanceMapping,
				DistanceScalingFactor: adapter.Config.DistanceScalingFactor,
				ConfidenceThreshold:   adapter.Config.ConfidenceThreshold,
				MaxResults:            adapter.Config.MaxResults,
				ReturnResults:         adapter.Config.ReturnResults,
			})
		}
	}

	a.Retrievers.Register("sql", "sqlite", sqlFactory("sqlite"))
	a.Retrievers.Register("sql", "postgres", sqlFactory("postgres"))
	a.Retrievers.Register("sql", "mysql", sqlFactory("mysql"))

	vectorFactory := func(ctx context.Context, adapter domain.Adapter) (retriever.Retriever, error) {
		ds, ok := vectorDatasources[adapter.Datasource]
		if !ok {
			return nil, orbiterr.New(orbiterr.KindConfig, "no vector_datasources entry named "+adapter.Datasource)
		}

		embedder, err := buildEmbedder(embedders, ds.EmbeddingProvider)
		if err != nil {
			return nil, err
		}

		return vectorretriever.New(vectorretriever.Config{
			Embedder:              embedder,
			Store:                 vectorretriever.NewMemStore(),
			DistanceMapping:       adapter.Config.DistanceMapping,
			DistanceScalingFactor: adapter.Config.DistanceScalingFactor,
			ConfidenceThreshold:   adapter.Config.ConfidenceThreshold,
			MaxResults:            adapter.Config.MaxResults,
			ReturnResults:         adapter.Config.ReturnResults,
		}), nil
	}

	// Chroma/Qdrant/Milvus/Pinecone/Elasticsearch are all external
	// collaborators per spec §1 Non-goals; every implementation_ref name
	// the spec enumerates resolves to the same in-process MemStore-backed
	// factory until a concrete driver is wired behind vectorretriever.VectorStore.
	for _, implRef := range []string{"memstore", "chroma", "qdrant", "milvus", "pinecone", "elasticsearch"} {
		a.Retrievers.Register("vector", implRef, vectorFactory)
	}

	fileFactory := func(ctx context.Context, adapter domain.Adapter) (retriever.Retriever, error) {
		embedder, err := buildEmbedder(embedders, adapter.Config.EmbeddingProvider)
		if err != nil {
			return nil, err
		}

		return fileretriever.New(fileretriever.Config{
			Embedder:              embedder,
			DistanceMapping:       adapter.Config.DistanceMapping,
			DistanceScalingFactor: adapter.Config.DistanceScalingFactor,
			ConfidenceThreshold:   adapter.Config.ConfidenceThreshold,
			MaxResults:            adapter.Config.MaxResults,
			ReturnResults:         adapter.Config.ReturnResults,
		}), nil
	}

	a.Retrievers.Register("file", "memstore", fileFactory)
	a.Retrievers.Register("file", "default", fileFactory)
}

func buildEmbedder(providers map[string]config.EmbeddingProviderSpec, name string) (*embedding.Client, error) {
	p, ok := providers[name]
	if !ok {
		return nil, orbiterr.New(orbiterr.KindConfig, "no embedding_providers entry named "+name)
	}

	return embedding.New(embedding.Config{BaseURL: p.BaseURL, APIKey: p.APIKey, Model: p.Model}), nil
}

func schemaOf(raw map[string]string) map[string]sqlretriever.ParamType {
	out := make(map[string]sqlretriever.ParamType, len(raw))

	for name, typ := range raw {
		switch typ {
		case "int":
			out[name] = sqlretriever.ParamInt
		case "float":
			out[name] = sqlretriever.ParamFloat
		default:
			out[name] = sqlretriever.ParamString
		}
	}

	return out
}

// dbPool caches one *sql.DB per (dialect, dsn) pair so adapters sharing a
// datasource reuse the same connection pool instead of opening a new one
// per retriever instance.
type dbPool struct {
	mu    sync.Mutex
	conns map[string]*sql.DB
}

func (p *dbPool) get(dialect, dsn string) (*sql.DB, error) {
	key := dialect + "|" + dsn

	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.conns[key]; ok {
		return db, nil
	}

	db, _, err := sqlOpen(dialect, dsn)
	if err != nil {
		return nil, err
	}

	p.conns[key] = db

	return db, nil
}
