package sqlretriever

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/orbitgw/orbit/internal/domain"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE qa (question TEXT, answer TEXT, source TEXT, distance REAL)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO qa VALUES ('What is the city population?', '1,234,567', 'census-2024', 0.0)`)
	require.NoError(t, err)

	return db
}

func TestSQLRetriever_DirectAnswerRowSurfaced(t *testing.T) {
	db := setupDB(t)

	ret, err := New(Config{
		DB: db,
		Template: Template{
			SQL:    "SELECT question, answer, question, distance, source FROM qa WHERE question = {query} LIMIT {limit}",
			Schema: map[string]ParamType{"query": ParamString, "limit": ParamInt},
		},
		QueryParam:          "query",
		DistanceMapping:     domain.DistanceMappingCosine,
		ConfidenceThreshold: 0.5,
		MaxResults:          5,
		ReturnResults:       1,
	})
	require.NoError(t, err)

	docs, err := ret.GetRelevantDocuments(context.Background(), "What is the city population?", 5, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "1,234,567", docs[0].Metadata.Answer)
	require.True(t, docs[0].HasDirectAnswer(0.5))
}

func TestCompile_RejectsUndeclaredParameter(t *testing.T) {
	_, err := Compile(Template{
		SQL:    "SELECT * FROM qa WHERE question = {query} AND region = {region}",
		Schema: map[string]ParamType{"query": ParamString},
	})
	require.Error(t, err)
}

func TestSQLRetriever_HealthCheck(t *testing.T) {
	db := setupDB(t)

	ret, err := New(Config{
		DB:       db,
		Template: Template{SQL: "SELECT question, answer, source, distance FROM qa WHERE question = {query}", Schema: map[string]ParamType{"query": ParamString}},
		QueryParam: "query",
	})
	require.NoError(t, err)

	require.Equal(t, "ok", string(ret.HealthCheck(context.Background())))
}
