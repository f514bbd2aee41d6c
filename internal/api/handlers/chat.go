package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/tripwise/tripwise-backend/internal/agent"
	"github.com/tripwise/tripwise-backend/internal/repository"
)

// SessionLister lists a user's conversation sessions.
type SessionLister interface {
	ListByOwner(ctx context.Context, owner string) ([]*repository.ConversationSession, error)
}

// ChatHandler exposes the conversational planner over HTTP.
type ChatHandler struct {
	orchestrator *agent.Orchestrator
	sessions     SessionLister
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(orchestrator *agent.Orchestrator, sessions SessionLister) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, sessions: sessions}
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Chat runs one conversation turn. The orchestrator never fails outward, so
// the reply is always a structured response.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	owner := c.Get("X-User-ID")
	if owner == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}

	resp := h.orchestrator.Run(c.Context(), owner, req.Message, req.SessionID)
	return c.JSON(resp)
}

// ListSessions returns the caller's active sessions, most recent first.
func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	owner := c.Get("X-User-ID")
	if owner == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "X-User-ID header is required",
		})
	}

	sessions, err := h.sessions.ListByOwner(c.Context(), owner)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list sessions",
		})
	}

	type sessionSummary struct {
		SessionID string `json:"session_id"`
		UpdatedAt string `json:"updated_at"`
	}
	out := make([]sessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = sessionSummary{
			SessionID: s.SessionID,
			UpdatedAt: s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return c.JSON(fiber.Map{"sessions": out})
}
