package sse

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// HandleInterrupt implements POST /{conversation_id}/interrupt: it flips
// the cancellation flag the live stream's context carries. Non-blocking —
// returns 200 immediately regardless of whether the Runner has noticed yet
// (spec.md §4.8 edge cases).
func (b *Bridge) HandleInterrupt(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}

	var req struct {
		MessageID string `json:"message_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.MessageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message_id is required")
	}

	found := b.Interrupt(conversationID, req.MessageID)
	return c.JSON(http.StatusOK, map[string]any{"interrupted": found})
}

// HandleDisconnect implements DELETE /{conversation_id}/session: cancel
// every active stream for the conversation and drop its cached session id.
func (b *Bridge) HandleDisconnect(c *echo.Context) error {
	conversationID := c.Param("id")
	if conversationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}

	cancelled := b.CancelAll(conversationID)
	if err := b.sessions.Delete(c.Request().Context(), conversationID); err != nil {
		return mapBridgeError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{"cancelled_streams": cancelled})
}
