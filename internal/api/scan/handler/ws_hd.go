package scanHandler

import (
	"time"

	contextPkg "Shelfscan/pkg/context"
	"Shelfscan/pkg/provider"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/net/context"
)

// handleShelfWebSocket accepts binary image frames and answers each with a
// full shelf analysis. The user id for collection matching comes from the
// upgrade request's query string.
func (h *ScanHandler) handleShelfWebSocket(c *websocket.Conn) {
	h.log.Info("Shelf analysis WebSocket client connected")
	defer h.log.Info("Shelf analysis WebSocket client disconnected")

	userID := c.Query("user_id")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	maxReadTimeout := 120 * time.Second

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Shelf WebSocket error: %v", err)
			} else {
				h.log.Info("Shelf WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), "ws"), 90*time.Second)
		result, err := h.scanService.AnalyzeShelf(ctx, userID, message, provider.AnalyzeOptions{})
		cancel()

		if err != nil {
			h.log.Errorf("Error analyzing shelf frame: %v", err)
			if writeErr := c.WriteJSON(map[string]string{"error": err.Error()}); writeErr != nil {
				h.log.Errorf("Error sending error response: %v", writeErr)
				break
			}
			continue
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(result); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			h.log.Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}
