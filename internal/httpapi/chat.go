package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/orbiterr"
	"github.com/orbitgw/orbit/internal/pipeline"
)

type chatRequestBody struct {
	Message string   `json:"message"`
	Stream  *bool    `json:"stream"`
	FileIDs []string `json:"file_ids"`
}

func (b chatRequestBody) wantsStream() bool {
	if b.Stream == nil {
		return true
	}

	return *b.Stream
}

func writeValidationError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "validation", "message": msg}})
}

func writeOrbitError(c *gin.Context, err error) {
	kind := orbiterr.KindConfig
	if oe, ok := orbiterr.As(err); ok {
		kind = oe.Kind
	}

	c.JSON(kind.HTTPStatus(), gin.H{"error": gin.H{"type": string(kind), "message": err.Error()}})
}

func buildRequest(c *gin.Context, body chatRequestBody) pipeline.ChatRequest {
	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	c.Header("X-Session-ID", sessionID)

	return pipeline.ChatRequest{
		APIKey:    c.GetHeader("X-API-Key"),
		SessionID: sessionID,
		Message:   body.Message,
		FileIDs:   body.FileIDs,
	}
}

// chatHandler serves POST /chat (spec §4.1): the primary newline-delimited
// JSON streaming surface, with a buffered single-JSON fallback when the
// caller sets stream=false.
func chatHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body chatRequestBody
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Message) == "" {
			writeValidationError(c, "message must not be empty")
			return
		}

		req := buildRequest(c, body)

		if !body.wantsStream() {
			serveBuffered(c, a, req)
			return
		}

		serveNDJSON(c, a, req)
	}
}

// serveNDJSON runs the pipeline with an Emitter that writes each event
// straight to the response as it is produced (spec §6 streaming envelope).
func serveNDJSON(c *gin.Context, a *app.App, req pipeline.ChatRequest) {
	ctx := c.Request.Context()

	flusher, _ := c.Writer.(http.Flusher)
	started := false

	emit := func(ev pipeline.Event) {
		line, err := json.Marshal(ev)
		if err != nil {
			return
		}

		if !started {
			c.Writer.Header().Set("Content-Type", "application/x-ndjson")
			c.Writer.WriteHeader(http.StatusOK)
			started = true
		}

		_, _ = c.Writer.Write(append(line, '\n'))

		if flusher != nil {
			flusher.Flush()
		}
	}

	if _, err := a.Pipeline.Run(ctx, req, emit); err != nil {
		if !started {
			writeOrbitError(c, err)
			return
		}

		emit(pipeline.Event{Type: pipeline.EventError, Content: err.Error()})
		emit(pipeline.Event{Type: pipeline.EventDone})
	}
}

// bufferedResult accumulates every event the pipeline emits, for callers
// that set stream=false (spec §4.1: "server MUST still consume the full
// backend stream internally before responding").
type bufferedResult struct {
	text    strings.Builder
	sources []pipeline.Source
	errMsg  string
}

func (r *bufferedResult) collect(ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventText:
		r.text.WriteString(ev.Content)
	case pipeline.EventSources:
		r.sources = ev.Sources
	case pipeline.EventError:
		r.errMsg = ev.Content
	}
}

func serveBuffered(c *gin.Context, a *app.App, req pipeline.ChatRequest) {
	var result bufferedResult

	if _, err := a.Pipeline.Run(c.Request.Context(), req, result.collect); err != nil {
		writeOrbitError(c, err)
		return
	}

	if result.errMsg != "" {
		c.JSON(http.StatusOK, gin.H{"response": result.errMsg, "blocked": true})
		return
	}

	resp := gin.H{"response": result.text.String()}
	if len(result.sources) > 0 {
		resp["sources"] = result.sources
	}

	c.JSON(http.StatusOK, resp)
}
