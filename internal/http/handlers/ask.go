package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jdmirek/askhub/internal/domain/chat"
	"github.com/jdmirek/askhub/internal/genai"
)

// AnswerGenerator is the slice of the Gemini client the ask endpoint
// needs. Configured reports whether an API key is present at all.
type AnswerGenerator interface {
	Configured() bool
	GenerateAnswer(ctx context.Context, question string, history []chat.Turn) (string, error)
}

type AskHandler struct {
	gen AnswerGenerator
}

func NewAskHandler(gen AnswerGenerator) *AskHandler {
	return &AskHandler{gen: gen}
}

func (h *AskHandler) Ask(ctx *gin.Context) {
	var req chat.AskRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		RespondBadRequest(ctx, "missing_question", "Please provide a question", nil)
		return
	}

	// Answered without touching the network when no API key is set.
	if !h.gen.Configured() {
		RespondUnavailable(ctx, "not_configured", "Ask service is not configured")
		return
	}

	// No extra deadline here. The client carries its own timeout and
	// model calls are legitimately slow.
	answer, err := h.gen.GenerateAnswer(ctx.Request.Context(), req.Question, req.ChatHistory)

	if err != nil {
		h.respondAskError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, chat.AskResponse{Answer: answer})
}

func (h *AskHandler) respondAskError(ctx *gin.Context, err error) {
	if errors.Is(err, genai.ErrNotConfigured) {
		RespondUnavailable(ctx, "not_configured", "Ask service is not configured")
		return
	}

	switch genai.Classify(err) {
	case genai.KindAuth:
		RespondUnauthorized(ctx, "upstream_auth", withUpstreamDetail("Upstream rejected credentials", err))
	case genai.KindQuota:
		RespondTooManyRequests(ctx, "quota_exceeded", withUpstreamDetail("Upstream quota exceeded", err))
	case genai.KindUnavailable:
		RespondBadGateway(ctx, "upstream_unavailable", withUpstreamDetail("Upstream service unavailable", err))
	default:
		RespondInternal(ctx, "Could not answer question")
		fmt.Println(err)
	}
}

// withUpstreamDetail appends the upstream message for API errors. Raw
// transport errors stay out of responses.
func withUpstreamDetail(message string, err error) string {
	var apiErr *genai.APIError

	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return message + ": " + apiErr.Message
	}

	return message
}
