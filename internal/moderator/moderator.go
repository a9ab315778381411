// Package moderator implements the moderator chain (spec §4.5): an ordered
// list of checks run over user input before retrieval and over the full
// assistant output before it is persisted, stopping at the first unsafe
// verdict. Grounded on axonhub's llm/pipeline Middleware chain shape
// (llm/pipeline/middleware.go), generalized from "provider request/response
// decorator" to "ordered safety check".
package moderator

import "context"

// Direction is which side of a chat turn a Moderator is checking.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Verdict is the result of one Moderator's check.
type Verdict struct {
	Safe   bool
	Reason string
	Score  float64
}

// Moderator is one safety check in the chain.
type Moderator interface {
	Name() string
	Check(ctx context.Context, text string, direction Direction) (Verdict, error)
}

// Chain runs an ordered list of Moderators, stopping at the first unsafe
// verdict (spec §4.5: "stop on first safe=false; return that verdict").
type Chain struct {
	moderators []Moderator
}

func NewChain(moderators ...Moderator) *Chain {
	return &Chain{moderators: moderators}
}

// Check runs every moderator in order. It returns the first unsafe verdict
// immediately, or a safe verdict if every moderator passed (or the chain is
// empty, matching spec's implicit default of "no moderation configured").
func (c *Chain) Check(ctx context.Context, text string, direction Direction) (Verdict, error) {
	for _, m := range c.moderators {
		v, err := m.Check(ctx, text, direction)
		if err != nil {
			return Verdict{}, err
		}

		if !v.Safe {
			return v, nil
		}
	}

	return Verdict{Safe: true}, nil
}
