package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orbitgw/orbit/internal/app"
	"github.com/orbitgw/orbit/internal/pipeline"
)

// mcpRequest is the JSON-RPC envelope spec §4.1/§6 names for the Model
// Context Protocol surface: method=chat.stream wraps the same chat turn.
type mcpRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  chatRequestBody `json:"params"`
}

type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func mcpErrorResponse(id json.RawMessage, code int, msg string) gin.H {
	return gin.H{"jsonrpc": "2.0", "id": id, "error": mcpError{Code: code, Message: msg}}
}

// mcpHandler serves POST /mcp. It streams the same newline-delimited
// envelope as /chat, each line additionally carrying the JSON-RPC id so a
// client can correlate frames with its request (spec §4.1: "JSON-RPC
// envelope for the same chat operation").
func mcpHandler(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req mcpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, mcpErrorResponse(nil, -32700, "parse error"))
			return
		}

		if req.Method != "chat.stream" {
			c.JSON(http.StatusNotFound, mcpErrorResponse(req.ID, -32601, "method not found: "+req.Method))
			return
		}

		if strings.TrimSpace(req.Params.Message) == "" {
			c.JSON(http.StatusBadRequest, mcpErrorResponse(req.ID, -32602, "params.message must not be empty"))
			return
		}

		chatReq := buildRequest(c, req.Params)

		ctx := c.Request.Context()

		c.Writer.Header().Set("Content-Type", "application/x-ndjson")
		c.Writer.WriteHeader(http.StatusOK)

		flusher, _ := c.Writer.(http.Flusher)

		emit := func(ev pipeline.Event) {
			line, err := json.Marshal(gin.H{"jsonrpc": "2.0", "id": req.ID, "result": ev})
			if err != nil {
				return
			}

			_, _ = c.Writer.Write(append(line, '\n'))

			if flusher != nil {
				flusher.Flush()
			}
		}

		if _, err := a.Pipeline.Run(ctx, chatReq, emit); err != nil {
			emit(pipeline.Event{Type: pipeline.EventError, Content: err.Error()})
			emit(pipeline.Event{Type: pipeline.EventDone})
		}
	}
}
