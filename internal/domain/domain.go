// Package domain holds the wire-independent data model shared by every
// layer of ORBIT: keys, adapters, prompts, sessions, messages, retrieved
// documents and circuit state (spec §3).
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApiKey is an opaque, printable bearer token bound to exactly one adapter.
type ApiKey struct {
	ID              string
	Token           string
	ClientName      string
	AdapterName     string
	SystemPromptID  string // empty if the adapter's default prompt applies
	Active          bool
	CreatedAt       time.Time
	LastUsedAt      time.Time
	Notes           string
}

// AdapterKind distinguishes adapters that retrieve grounding context from
// those that forward straight to inference.
type AdapterKind string

const (
	AdapterKindRetriever   AdapterKind = "retriever"
	AdapterKindPassthrough AdapterKind = "passthrough"
)

// DistanceMapping selects how a retriever turns a raw distance into a
// confidence score (spec §4.3 step 3); it is explicit per adapter, never inferred.
type DistanceMapping string

const (
	DistanceMappingCosine      DistanceMapping = "cosine"       // s = 1 - d
	DistanceMappingExponential DistanceMapping = "exponential"  // s = exp(-d / scale)
)

// AdapterConfig tunes retrieval behavior for one adapter.
type AdapterConfig struct {
	ConfidenceThreshold   float64
	MaxResults            int
	ReturnResults         int
	EmbeddingProvider     string
	DistanceMapping       DistanceMapping
	DistanceScalingFactor float64
}

// Adapter is a static, startup-enumerated binding of a retriever + datasource
// + tuning + inference provider. The registry is append-only until restart.
type Adapter struct {
	Name              string
	Kind              AdapterKind
	Datasource        string // retriever-registry key, e.g. "qa-sql", "qa-vector-chroma"
	AdapterFamily     string // "sql", "vector", "file"
	ImplementationRef string // retriever implementation tag within the family
	Config            AdapterConfig
	InferenceProvider string // inference-client factory key
	DefaultPromptID   string
}

// SystemPrompt is immutable once bound to a live key except via UpdatePrompt,
// which bumps UpdatedAt.
type SystemPrompt struct {
	ID        string
	Name      string
	Text      string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is the lifecycle record for one conversation id.
type Session struct {
	SessionID      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	MessageCount   int
}

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a session's ordered log. Ordinal is strictly
// increasing within a session and never reused (spec §3 invariant).
type Message struct {
	SessionID     string
	Ordinal       int64
	Role          Role
	Content       string
	CreatedAt     time.Time
	TokenEstimate int
	Blocked       bool
}

// DocumentMetadata carries the retriever-specific provenance of a Document.
type DocumentMetadata struct {
	Source     string
	Answer     string // non-empty signals a candidate direct answer
	Question   string
	Distance   float64
	Confidence float64
}

// Document is one ranked result of a retriever call. A retriever returning
// zero documents yields an explicit empty slice, never fabricated placeholders.
type Document struct {
	Content  string
	Metadata DocumentMetadata
	Score    decimal.Decimal
}

// HasDirectAnswer reports whether this document can bypass generation
// (spec §4.3 QA-family algorithm).
func (d Document) HasDirectAnswer(threshold float64) bool {
	return d.Metadata.Answer != "" && d.Metadata.Confidence >= threshold
}

// CircuitBreakerState is one of the three states a per-target breaker can be in.
type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

// CircuitState is the supervisor's bookkeeping for one (target_kind,
// target_name) pair. Mutated only under the supervisor's per-target lock.
type CircuitState struct {
	TargetKey          string
	State              CircuitBreakerState
	ConsecutiveFailures int
	OpenedAt           time.Time
	LastProbeAt        time.Time
	RollingSuccess     int
	RollingFailure     int
	LastErrorClass     string
}
