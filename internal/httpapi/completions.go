package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/pipeline"
)

// completionsRequestBody is the subset of the OpenAI chat-completions
// request shape ORBIT maps onto one pipeline turn (spec §4.1: "OpenAI
// compatible surface mapping to the same pipeline"). Only the last message
// with role "user" is treated as the turn's user message; ORBIT itself owns
// session history, so all other messages are ignored rather than re-injected.
type completionsRequestBody struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Stream *bool `json:"stream"`
}

func (b completionsRequestBody) lastUserMessage() string {
	for i := len(b.Messages) - 1; i >= 0; i-- {
		if b.Messages[i].Role == "user" {
			return b.Messages[i].Content
		}
	}

	return ""
}

func (b completionsRequestBody) wantsStream() bool {
	if b.Stream == nil {
		return false
	}

	return *b.Stream
}

// chatCompletionsHandler serves POST /v1/chat/completions: the same pipeline
// turn, rendered in OpenAI's wire shape so existing OpenAI SDK clients work
// unmodified against ORBIT.
func chatCompletionsHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body completionsRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			writeValidationError(c, err.Error())
			return
		}

		message := body.lastUserMessage()
		if strings.TrimSpace(message) == "" {
			writeValidationError(c, "messages must contain a non-empty user message")
			return
		}

		req := buildRequest(c, chatRequestBody{Message: message})

		if body.wantsStream() {
			serveCompletionsStream(c, a, req)
			return
		}

		serveCompletionsBuffered(c, a, req)
	}
}

func serveCompletionsBuffered(c *gin.Context, a *app.App, req pipeline.ChatRequest) {
	var result bufferedResult

	if _, err := a.Pipeline.Run(c.Request.Context(), req, result.collect); err != nil {
		writeOrbitError(c, err)
		return
	}

	content := result.text.String()
	if result.errMsg != "" {
		content = result.errMsg
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "chat.completion",
		"choices": []gin.H{
			{"index": 0, "finish_reason": "stop", "message": gin.H{"role": "assistant", "content": content}},
		},
	})
}

// serveCompletionsStream renders each text chunk as an OpenAI-style SSE
// delta over gin's SSEvent (gin-contrib/sse), terminated by the literal
// "data: [DONE]" line the SDKs expect.
func serveCompletionsStream(c *gin.Context, a *app.App, req pipeline.ChatRequest) {
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	chunk := func(delta gin.H) gin.H {
		return gin.H{"object": "chat.completion.chunk", "choices": []gin.H{{"index": 0, "delta": delta}}}
	}

	emit := func(ev pipeline.Event) {
		switch ev.Type {
		case pipeline.EventText:
			c.SSEvent("message", chunk(gin.H{"content": ev.Content}))
		case pipeline.EventError:
			c.SSEvent("message", chunk(gin.H{"content": ev.Content}))
		}

		c.Writer.Flush()
	}

	_, _ = a.Pipeline.Run(ctx, req, emit)

	c.Writer.Write([]byte("data: [DONE]\n\n"))
	c.Writer.Flush()
}
