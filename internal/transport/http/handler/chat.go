package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studyai/internal/ai"
	"studyai/internal/app"
	"studyai/internal/transport/http/response"
)

// TruncationMarker is appended to the stream when generation broke off
// mid-answer, so the partial text is never mistaken for a complete one.
const TruncationMarker = "[answer interrupted before completion]"

type ChatHandler struct {
	chatService *app.ChatService
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Ask streams the answer for one chat turn as server-sent events:
// `data:` fragments while the model generates, then either an `event:
// done` carrying the persisted assistant message or an `event: error`
// naming the step that failed.
func (h *ChatHandler) Ask(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	streamed := false
	message, err := h.chatService.StreamAsk(c.Request.Context(), app.AskInput{
		SessionID: sessionID,
		Question:  req.Question,
	}, func(fragment string) error {
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(fragment) + "\n\n")); writeErr != nil {
			return writeErr
		}
		streamed = true
		flusher.Flush()
		return nil
	})
	if err != nil {
		h.writeStreamError(c, flusher, err, streamed)
		return
	}

	payload, marshalErr := json.Marshal(message)
	if marshalErr != nil {
		payload = []byte(`{}`)
	}
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + string(payload) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

// writeStreamError reports the failed step inside the already-open
// event stream. Interrupted generations first get the truncation
// marker so the streamed partial text is annotated as incomplete.
func (h *ChatHandler) writeStreamError(c *gin.Context, flusher http.Flusher, err error, streamed bool) {
	step := "storage"
	switch {
	case errors.Is(err, ai.ErrModelUnavailable), errors.Is(err, ai.ErrStreamInterrupted):
		step = "generation"
	case errors.Is(err, app.ErrInvalidInput):
		step = "validation"
	case errors.Is(err, app.ErrSessionNotFound):
		step = "session lookup"
	}

	if streamed && errors.Is(err, ai.ErrStreamInterrupted) {
		if _, writeErr := c.Writer.Write([]byte("data: " + TruncationMarker + "\n\n")); writeErr == nil {
			flusher.Flush()
		}
	}
	line := "event: error\ndata: " + step + " failed: " + sanitizeSSE(err.Error()) + "\n\n"
	if _, writeErr := c.Writer.Write([]byte(line)); writeErr == nil {
		flusher.Flush()
	}
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), sessionID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}
	response.OK(c, history)
}

func (h *ChatHandler) ClearHistory(c *gin.Context) {
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	deleted, err := h.chatService.ClearHistory(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "clear history failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_messages": deleted})
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
