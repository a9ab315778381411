package moderator

import (
	"context"
	"strings"
)

// RuleBased is the keyword + heuristic prompt-guardrail variant (spec
// §4.5): input blocklist terms and output refusal-marker detection, with no
// external dependency.
type RuleBased struct {
	name           string
	blockedTerms   []string
	refusalMarkers []string
}

type RuleBasedConfig struct {
	Name string
	// BlockedTerms are matched case-insensitively against input text.
	BlockedTerms []string
	// RefusalMarkers flag output text the model itself refused to produce
	// (e.g. leaked system-prompt fragments, jailbreak compliance phrases).
	RefusalMarkers []string
}

func NewRuleBased(cfg RuleBasedConfig) *RuleBased {
	name := cfg.Name
	if name == "" {
		name = "rule-based"
	}

	return &RuleBased{name: name, blockedTerms: cfg.BlockedTerms, refusalMarkers: cfg.RefusalMarkers}
}

func (r *RuleBased) Name() string {
	return r.name
}

func (r *RuleBased) Check(_ context.Context, text string, direction Direction) (Verdict, error) {
	lower := strings.ToLower(text)

	terms := r.blockedTerms
	if direction == DirectionOutput {
		terms = r.refusalMarkers
	}

	for _, term := range terms {
		if term == "" {
			continue
		}

		if strings.Contains(lower, strings.ToLower(term)) {
			return Verdict{Safe: false, Reason: "matched blocked term: " + term, Score: 1}, nil
		}
	}

	return Verdict{Safe: true}, nil
}
