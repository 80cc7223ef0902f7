package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deckmuse/deckmuse/backend/internal/llm"
	"github.com/deckmuse/deckmuse/backend/internal/metrics"
	"github.com/deckmuse/deckmuse/backend/internal/models"
)

// ChatCompleter runs one chat turn to completion. Implemented by
// llm.ChatService; faked in tests.
type ChatCompleter interface {
	RunChat(ctx context.Context, history []llm.Content, lastParts []llm.Part) (*models.AssistantReply, error)
}

type ChatHandler struct {
	chat ChatCompleter
}

func NewChatHandler(chat ChatCompleter) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat handles POST /api/chat. The client re-sends its full transcript each
// call; the last message must be user-authored and becomes the newest turn,
// everything before it seeds the model's history.
func (h *ChatHandler) Chat(c *gin.Context) {
	reqID := uuid.New().String()
	c.Header("X-Request-ID", reqID)

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if len(req.Messages) == 0 {
		metrics.ChatRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "no messages provided"})
		return
	}

	turns := transcriptToContents(req.Messages)
	last := turns[len(turns)-1]
	if last.Role != "user" || len(last.Parts) == 0 {
		log.Printf("Chat %s: last message is not user-authored", reqID)
		metrics.ChatRequestsTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message sequence"})
		return
	}

	reply, err := h.chat.RunChat(c.Request.Context(), turns[:len(turns)-1], last.Parts)
	if err != nil {
		var parseErr *llm.ResponseParseError
		if errors.As(err, &parseErr) {
			// Keep the raw model text in the logs only.
			log.Printf("Chat %s: response parsing failed: %v", reqID, parseErr.Err)
			log.Printf("Chat %s: raw model output: %s", reqID, parseErr.Raw)
			metrics.ChatRequestsTotal.WithLabelValues("parse_error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Sorry, I encountered an issue processing the response from the AI.",
			})
			return
		}

		log.Printf("Chat %s: completion failed: %v", reqID, err)
		metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error: " + err.Error()})
		return
	}

	metrics.ChatRequestsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, models.ChatResponse{Response: reply})
}

// transcriptToContents maps the client transcript onto provider turns;
// assistant messages become model turns.
func transcriptToContents(messages []models.ChatMessage) []llm.Content {
	contents := make([]llm.Content, len(messages))
	for i, msg := range messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		contents[i] = llm.Content{Role: role, Parts: []llm.Part{llm.TextPart(msg.Content)}}
	}
	return contents
}
