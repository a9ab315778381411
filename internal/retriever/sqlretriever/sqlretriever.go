package sqlretriever

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/orbiterr"
	"github.com/orbitgw/orbit/internal/retriever"
)

// Retriever is the SQL-family retriever (spec §4.3): a parameterized
// templated SQL query against SQLite/Postgres/MySQL. Rows must project five
// columns in order: content, answer, question, distance, source; the
// QA-family direct-answer bypass fires when the top row carries a non-empty
// answer at or above the adapter's confidence threshold.
type Retriever struct {
	db       *sql.DB
	query    *compiled
	queryArg string // the column bound to the caller's query text, e.g. "query"

	distanceMapping       domain.DistanceMapping
	distanceScalingFactor float64
	confidenceThreshold   float64
	maxResults            int
	returnResults         int
}

// Config binds a Template plus column mapping for one SQL adapter instance.
type Config struct {
	DB                    *sql.DB
	Template              Template
	QueryParam            string
	DistanceMapping       domain.DistanceMapping
	DistanceScalingFactor float64
	ConfidenceThreshold   float64
	MaxResults            int
	ReturnResults         int
}

func New(cfg Config) (*Retriever, error) {
	compiled, err := Compile(cfg.Template)
	if err != nil {
		return nil, err
	}

	return &Retriever{
		db:                    cfg.DB,
		query:                 compiled,
		queryArg:              cfg.QueryParam,
		distanceMapping:       cfg.DistanceMapping,
		distanceScalingFactor: cfg.DistanceScalingFactor,
		confidenceThreshold:   cfg.ConfidenceThreshold,
		maxResults:            cfg.MaxResults,
		returnResults:         cfg.ReturnResults,
	}, nil
}

// row is the fixed projection every SQL adapter template must produce:
// content, answer (nullable), question (nullable), distance, source (nullable).
type row struct {
	content  sql.NullString
	answer   sql.NullString
	question sql.NullString
	distance sql.NullFloat64
	source   sql.NullString
}

func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string, topK int, _ *retriever.Filters) ([]domain.Document, error) {
	if topK <= 0 {
		topK = r.maxResults
	}

	values := map[string]any{r.queryArg: query}
	if _, ok := r.query.bindable("limit"); ok {
		values["limit"] = topK
	}

	args, err := r.query.Bind(values)
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindConfig, "bind sql template", err)
	}

	rows, err := r.db.QueryContext(ctx, r.query.Query, args...)
	if err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "sql retriever query failed", err)
	}
	defer rows.Close()

	var docs []domain.Document

	for rows.Next() {
		var rw row
		if err := rows.Scan(&rw.content, &rw.answer, &rw.question, &rw.distance, &rw.source); err != nil {
			return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "sql retriever scan failed", err)
		}

		distance := rw.distance.Float64
		confidence := retriever.Confidence(r.distanceMapping, distance, r.distanceScalingFactor)

		doc := domain.Document{
			Content: rw.content.String,
			Metadata: domain.DocumentMetadata{
				Source:     rw.source.String,
				Answer:     rw.answer.String,
				Question:   rw.question.String,
				Distance:   distance,
				Confidence: confidence,
			},
			Score: decimal.NewFromFloat(confidence),
		}
		docs = append(docs, doc)

		if len(docs) >= topK {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, orbiterr.Wrap(orbiterr.KindUpstreamTransient, "sql retriever rows error", err)
	}

	return retriever.RankAndFilter(docs, r.confidenceThreshold, r.returnResults), nil
}

func (r *Retriever) HealthCheck(ctx context.Context) retriever.Health {
	if err := r.db.PingContext(ctx); err != nil {
		return retriever.HealthDown
	}

	return retriever.HealthOK
}

func (r *Retriever) Close() error {
	return nil // the *sql.DB is shared across SQL adapters and is not closed here.
}

// bindable reports whether name is part of the compiled template's
// parameter order, so optional columns (like an explicit LIMIT) are only
// bound when the adapter's template actually declares them.
func (c *compiled) bindable(name string) (string, bool) {
	for _, n := range c.Order {
		if n == name {
			return n, true
		}
	}

	return "", false
}
