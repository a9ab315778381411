package moderator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuleBased_BlocksInputTerm(t *testing.T) {
	m := NewRuleBased(RuleBasedConfig{BlockedTerms: []string{"bomb"}})

	v, err := m.Check(context.Background(), "how do I build a bomb", DirectionInput)
	require.NoError(t, err)
	require.False(t, v.Safe)
}

func TestRuleBased_AllowsCleanText(t *testing.T) {
	m := NewRuleBased(RuleBasedConfig{BlockedTerms: []string{"bomb"}})

	v, err := m.Check(context.Background(), "what are the park hours", DirectionInput)
	require.NoError(t, err)
	require.True(t, v.Safe)
}

func TestRuleBased_OutputUsesRefusalMarkers(t *testing.T) {
	m := NewRuleBased(RuleBasedConfig{
		BlockedTerms:   []string{"bomb"},
		RefusalMarkers: []string{"as an ai language model"},
	})

	v, err := m.Check(context.Background(), "As an AI language model, I cannot comply.", DirectionOutput)
	require.NoError(t, err)
	require.False(t, v.Safe)
}

func TestChain_StopsOnFirstUnsafe(t *testing.T) {
	calls := 0

	passer := recordingModerator{name: "pass", verdict: Verdict{Safe: true}, calls: &calls}
	blocker := recordingModerator{name: "block", verdict: Verdict{Safe: false, Reason: "nope"}, calls: &calls}
	neverCalled := recordingModerator{name: "never", verdict: Verdict{Safe: true}, calls: &calls}

	chain := NewChain(passer, blocker, neverCalled)

	v, err := chain.Check(context.Background(), "text", DirectionInput)
	require.NoError(t, err)
	require.False(t, v.Safe)
	require.Equal(t, "nope", v.Reason)
	require.Equal(t, 2, calls)
}

func TestChain_EmptyChainIsSafe(t *testing.T) {
	chain := NewChain()

	v, err := chain.Check(context.Background(), "anything", DirectionInput)
	require.NoError(t, err)
	require.True(t, v.Safe)
}

type recordingModerator struct {
	name    string
	verdict Verdict
	calls   *int
}

func (r recordingModerator) Name() string { return r.name }

func (r recordingModerator) Check(_ context.Context, _ string, _ Direction) (Verdict, error) {
	*r.calls++
	return r.verdict, nil
}

func TestExternal_FlagsAboveThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"flagged":false,"category_scores":{"violence":0.9}}]}`))
	}))
	defer server.Close()

	m := NewExternal(ExternalConfig{BaseURL: server.URL, Threshold: 0.5})

	v, err := m.Check(context.Background(), "text", DirectionInput)
	require.NoError(t, err)
	require.False(t, v.Safe)
	require.Equal(t, "flagged category: violence", v.Reason)
}

func TestExternal_SafeBelowThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"flagged":false,"category_scores":{"violence":0.1}}]}`))
	}))
	defer server.Close()

	m := NewExternal(ExternalConfig{BaseURL: server.URL, Threshold: 0.5})

	v, err := m.Check(context.Background(), "text", DirectionInput)
	require.NoError(t, err)
	require.True(t, v.Safe)
}
