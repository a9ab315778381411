// Package pipeline implements the chat pipeline orchestrator (spec §4.7):
// AUTH → SESSION → MOD_IN → RETRIEVE → ASSEMBLE → INFER → MOD_OUT → PERSIST
// → DONE, with the short-circuit transitions the spec names. Grounded on
// axonhub's llm/pipeline orchestration shape (pipeline.go, stream.go,
// non_streaming.go), generalized from "transform one HTTP call through a
// provider" to "run one chat turn through retrieval, moderation and
// inference".
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/orbitgw/orbit/internal/domain"
	"github.com/orbitgw/orbit/internal/inference"
	"github.com/orbitgw/orbit/internal/log"
	"github.com/orbitgw/orbit/internal/moderator"
	"github.com/orbitgw/orbit/internal/orbiterr"
	"github.com/orbitgw/orbit/internal/retriever"
	"github.com/orbitgw/orbit/internal/store/keystore"
	"github.com/orbitgw/orbit/internal/store/sessionstore"
	"github.com/orbitgw/orbit/pkg/streams"
)

// ChatRequest is one inbound /chat (or /v1/chat/completions, or /mcp
// chat.stream) call (spec §4.1).
type ChatRequest struct {
	APIKey    string
	SessionID string // empty: the pipeline generates and echoes one
	Message   string
	FileIDs   []string
}

// AdapterLookup resolves a static, startup-enumerated Adapter by name.
type AdapterLookup func(name string) (domain.Adapter, bool)

// ProviderLookup resolves a static, startup-enumerated inference Provider
// by the key an Adapter's InferenceProvider field names.
type ProviderLookup func(name string) (inference.Provider, bool)

// Pipeline composes every collaborator a chat turn needs (spec §4.7).
type Pipeline struct {
	Keys       *keystore.Store
	Sessions   *sessionstore.Store
	Retrievers *retriever.Registry
	Inference  *inference.Registry

	Adapters  AdapterLookup
	Providers ProviderLookup

	InputModeration  *moderator.Chain
	OutputModeration *moderator.Chain

	Supervisor CircuitCaller

	MaxHistoryMessages   int
	ReservedOutputTokens int
	NumCtx               int
	RefusalMessage       string
}

// CircuitCaller is the subset of *supervisor.Supervisor the pipeline needs,
// kept as an interface so tests can substitute a no-op caller.
type CircuitCaller interface {
	Call(ctx context.Context, kind, name string, fn func(ctx context.Context) error) error
}

// Run executes one chat turn, emitting events via emit in order and
// returning the session id the caller should echo back (spec §4.1
// X-Session-ID). A non-nil error means the request never produced a valid
// event stream at all (e.g. auth failure) and the caller should respond
// with the mapped HTTP status instead of starting the stream.
func (p *Pipeline) Run(ctx context.Context, req ChatRequest, emit Emitter) (string, error) {
	// AUTH
	resolved, err := p.Keys.Resolve(ctx, req.APIKey)
	if err != nil {
		return "", err
	}

	p.Keys.TouchAsync(ctx, req.APIKey)

	adapter, ok := p.Adapters(resolved.AdapterName)
	if !ok {
		return "", orbiterr.New(orbiterr.KindConfig, "adapter no longer registered: "+resolved.AdapterName)
	}

	// SESSION
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if _, err := p.Sessions.EnsureSession(ctx, sessionID); err != nil {
		return "", orbiterr.Wrap(orbiterr.KindUpstreamTransient, "session store unavailable", err)
	}

	history, err := p.Sessions.Recent(ctx, sessionID, p.historyLimit())
	if err != nil {
		return "", orbiterr.Wrap(orbiterr.KindUpstreamTransient, "session store unavailable", err)
	}

	// MOD_IN
	if p.InputModeration != nil {
		verdict, err := p.InputModeration.Check(ctx, req.Message, moderator.DirectionInput)
		if err != nil {
			emit(Event{Type: EventError, Content: "moderation unavailable"})
			emit(Event{Type: EventDone})

			return sessionID, nil
		}

		if !verdict.Safe {
			emit(Event{Type: EventError, Content: p.refusalMessage()})
			emit(Event{Type: EventDone})

			_, _ = p.Sessions.Append(ctx, sessionID, domain.RoleUser, req.Message, true)

			return sessionID, nil
		}
	}

	// RETRIEVE
	var (
		docs           []domain.Document
		directAnswer   string
		hasDirect      bool
		retrieverWarn  string
	)

	if adapter.Kind == domain.AdapterKindRetriever {
		docs, directAnswer, hasDirect, retrieverWarn = p.retrieve(ctx, adapter, req)
	}

	// ASSEMBLE
	systemText := p.systemPromptText(ctx, resolved, adapter)
	messages := p.assemble(systemText, history, docs, req.Message)

	// INFER
	var fullText string

	blocked := false

	if hasDirect {
		fullText = directAnswer
		emit(Event{Type: EventText, Content: fullText})
	} else {
		provider, ok := p.Providers(adapter.InferenceProvider)
		if !ok {
			emit(Event{Type: EventError, Content: "upstream_unavailable"})
			emit(Event{Type: EventDone})

			_, _ = p.Sessions.Append(ctx, sessionID, domain.RoleUser, req.Message, false)

			return sessionID, nil
		}

		text, cancelled, err := p.infer(ctx, adapter, provider, messages, emit)
		if cancelled {
			// Client disconnected: do not persist the assistant turn.
			return sessionID, nil
		}

		if err != nil {
			emit(Event{Type: EventError, Content: "upstream_unavailable"})
			emit(Event{Type: EventDone})

			_, _ = p.Sessions.Append(ctx, sessionID, domain.RoleUser, req.Message, false)

			return sessionID, nil
		}

		fullText = text
	}

	// MOD_OUT — runs on the direct-answer bypass too (spec §4.3: "moderation
	// still runs on it"; §8 testable property 7).
	if p.OutputModeration != nil {
		verdict, err := p.OutputModeration.Check(ctx, fullText, moderator.DirectionOutput)
		if err == nil && !verdict.Safe {
			emit(Event{Type: EventError, Content: p.refusalMessage()})

			fullText = p.refusalMessage()
			blocked = true
		}
	}

	// PERSIST
	if err := p.Sessions.AppendTurn(ctx, sessionID, req.Message, fullText, blocked); err != nil {
		emit(Event{Type: EventError, Content: "failed to persist conversation"})
	}

	if len(docs) > 0 {
		srcs := make([]Source, 0, len(docs))
		for _, d := range docs {
			score, _ := d.Score.Float64()
			srcs = append(srcs, Source{Source: d.Metadata.Source, Score: score})
		}

		emit(Event{Type: EventSources, Sources: srcs})
	}

	if retrieverWarn != "" {
		log.Warn(ctx, "retrieval diagnostic", log.String("session_id", sessionID), log.String("reason", retrieverWarn))
	}

	emit(Event{Type: EventDone})

	return sessionID, nil
}

func (p *Pipeline) historyLimit() int {
	if p.MaxHistoryMessages <= 0 {
		return 20
	}

	return p.MaxHistoryMessages
}

func (p *Pipeline) refusalMessage() string {
	if p.RefusalMessage == "" {
		return "I can't help with that request."
	}

	return p.RefusalMessage
}

// retrieve invokes the adapter's retriever through the supervisor. A
// retriever failure is distinct from "no relevant documents": the former
// proceeds inference-only with a diagnostic, the latter proceeds with no
// context (spec §4.3 Failure semantics).
func (p *Pipeline) retrieve(ctx context.Context, adapter domain.Adapter, req ChatRequest) (docs []domain.Document, directAnswer string, hasDirect bool, warning string) {
	ret, err := p.Retrievers.Get(ctx, adapter)
	if err != nil {
		return nil, "", false, "retriever unavailable: " + err.Error()
	}

	var filters *retriever.Filters
	if len(req.FileIDs) > 0 {
		filters = &retriever.Filters{FileIDs: req.FileIDs}
	}

	err = p.Supervisor.Call(ctx, "retriever", adapter.Datasource, func(ctx context.Context) error {
		d, err := ret.GetRelevantDocuments(ctx, req.Message, adapter.Config.MaxResults, filters)
		if err != nil {
			return err
		}

		docs = d

		return nil
	})
	if err != nil {
		return nil, "", false, "retrieval failed: " + err.Error()
	}

	if len(docs) > 0 && docs[0].HasDirectAnswer(adapter.Config.ConfidenceThreshold) {
		return docs, docs[0].Metadata.Answer, true, ""
	}

	return docs, "", false, ""
}

// systemPromptText resolves the prompt bound to the key, falling back to
// the adapter's default (spec §3: a key may override the adapter's prompt).
func (p *Pipeline) systemPromptText(ctx context.Context, resolved keystore.Resolved, adapter domain.Adapter) string {
	promptID := resolved.SystemPromptID
	if promptID == "" {
		promptID = adapter.DefaultPromptID
	}

	if promptID == "" {
		return ""
	}

	prompt, err := p.Keys.GetPrompt(ctx, promptID)
	if err != nil || prompt == nil {
		return ""
	}

	return prompt.Text
}

// assemble composes the ordered prompt message list (spec §4.7 step 5):
// [system prompt] + [prior session messages, pruned] + [context preamble]
// + [current user message].
func (p *Pipeline) assemble(systemText string, history []domain.Message, docs []domain.Document, userMessage string) []domain.ChatMessage {
	var out []domain.ChatMessage

	reserved := p.ReservedOutputTokens
	if reserved <= 0 {
		reserved = 512
	}

	numCtx := p.NumCtx
	if numCtx <= 0 {
		numCtx = 4096
	}

	budget := numCtx - reserved

	if systemText != "" {
		out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: systemText})
		budget -= estimateTokens(systemText)
	}

	// Prior-message pruning: drop oldest until the estimated total fits the
	// budget (spec §4.7 step 5).
	pruned := prune(history, budget)
	for _, m := range pruned {
		out = append(out, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}

	if len(docs) > 0 {
		out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: contextPreamble(docs)})
	}

	out = append(out, domain.ChatMessage{Role: domain.RoleUser, Content: userMessage})

	return out
}

// contextPreamble renders the stable labelled block the spec requires:
// one line per document naming source, answer/content, and score.
func contextPreamble(docs []domain.Document) string {
	var b strings.Builder

	b.WriteString("Relevant context:\n")

	for _, d := range docs {
		content := d.Content
		if d.Metadata.Answer != "" {
			content = d.Metadata.Answer
		}

		score, _ := d.Score.Float64()
		fmt.Fprintf(&b, "- source=%s score=%.2f: %s\n", d.Metadata.Source, score, content)
	}

	return b.String()
}

// estimateTokens is a crude, provider-agnostic length proxy used only for
// the pruning budget, never for billing.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func prune(history []domain.Message, budget int) []domain.Message {
	if budget <= 0 {
		return nil
	}

	total := 0

	start := len(history)

	for i := len(history) - 1; i >= 0; i-- {
		cost := estimateTokens(history[i].Content)
		if total+cost > budget {
			break
		}

		total += cost
		start = i
	}

	return history[start:]
}

// infer runs the inference client through the supervisor and forwards each
// token chunk as a text event, returning the accumulated text. cancelled
// reports whether ctx was cancelled mid-stream (client disconnect), in
// which case the assistant turn must not be persisted (spec §4.7 step 9).
func (p *Pipeline) infer(ctx context.Context, adapter domain.Adapter, provider inference.Provider, messages []domain.ChatMessage, emit Emitter) (text string, cancelled bool, err error) {
	params := domain.GenerationParams{Model: provider.Model, Stream: true}

	var st streams.Stream[domain.TokenChunk]

	callErr := p.Supervisor.Call(ctx, "inference", adapter.InferenceProvider, func(ctx context.Context) error {
		client, err := p.Inference.Get(ctx, provider)
		if err != nil {
			return err
		}

		s, err := client.Stream(ctx, messages, params)
		if err != nil {
			return err
		}

		st = s

		return nil
	})
	if callErr != nil {
		return "", false, callErr
	}
	defer st.Close()

	var buf strings.Builder

	for st.Next() {
		chunk := st.Current()
		buf.WriteString(chunk.Text)
		emit(Event{Type: EventText, Content: chunk.Text})
	}

	if err := st.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return "", true, err
		}

		return "", false, err
	}

	return buf.String(), false, nil
}
