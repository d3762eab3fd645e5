// handlers/api/notifications.go
package api

import (
	"bufio"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"

	"pathlog/middleware"
	"pathlog/notify"
	"pathlog/utils"
)

// NotificationHandler streams toast events to the browser so a toast
// raised mid-request (say, a background refetch failing) still shows
// up without a reload.
type NotificationHandler struct {
	hub    *notify.Hub
	toasts *notify.Store
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(hub *notify.Hub, toasts *notify.Store) *NotificationHandler {
	return &NotificationHandler{
		hub:    hub,
		toasts: toasts,
	}
}

// HandleSSE handles Server-Sent Events for toast delivery
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	// Set headers for SSE
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		return utils.UnauthorizedError("No session", nil)
	}

	subscriberID, events := h.hub.Subscribe(sessionID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(subscriberID)

		// Keep-alive ticker
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				// Send keep-alive comment
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-done:
				return
			}
		}
	}))

	return nil
}

// HandleWebSocket streams toast events over a WebSocket connection.
// The session id is resolved before the upgrade and stashed in locals.
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	sessionID, _ := c.Locals("sessionID").(string)
	if sessionID == "" {
		c.Close()
		return
	}

	subscriberID, events := h.hub.Subscribe(sessionID)
	defer func() {
		h.hub.Unsubscribe(subscriberID)
		c.Close()
	}()

	for event := range events {
		if err := c.WriteJSON(event); err != nil {
			utils.Log.Debug("websocket toast write failed: %v", err)
			break
		}
	}
}

// GetToast returns the session's current toast slot, for initial page
// render before the stream connects.
func (h *NotificationHandler) GetToast(c *fiber.Ctx) error {
	return c.JSON(h.toasts.Current(middleware.SessionID(c)))
}

// HideToast clears visibility. The browser calls this from its
// auto-dismiss timer and from the close button; the slot keeps its
// text so the exit animation does not flash empty.
func (h *NotificationHandler) HideToast(c *fiber.Ctx) error {
	h.toasts.Hide(middleware.SessionID(c))
	return c.SendStatus(fiber.StatusNoContent)
}
