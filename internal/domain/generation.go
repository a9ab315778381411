package domain

// ChatMessage is one entry of the ordered prompt sent to an inference client.
// It doubles as the wire shape stored for session history (see Message).
type ChatMessage struct {
	Role    Role
	Content string
}

// GenerationParams is the enumerated set of generation knobs spec §4.4
// names. Fields unknown to a given backend are ignored by its client, never
// rejected, to preserve backend portability.
type GenerationParams struct {
	Model         string
	Temperature   float64
	TopP          float64
	TopK          int
	MaxTokens     int
	RepeatPenalty float64
	StopTokens    []string
	NumCtx        int
	Stream        bool
}

// TokenChunk is one piece of a streamed inference response.
type TokenChunk struct {
	Text     string
	Finished bool
}
