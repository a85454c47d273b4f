package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/broadcast"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

// Stream names accepted by GET /api/v1/streams/:stream
const (
	streamGroceries       = "groceries"
	streamRecommendations = "recommendations"
	streamCart            = "cart"
	streamNotifications   = "notifications"
)

// Stream serves one of the engine's streams as Server-Sent Events. The
// current value is sent first, then every change until the client leaves.
func (h *Handler) Stream(c *gin.Context) {
	name := c.Param("stream")
	switch name {
	case streamGroceries:
		serveStream(c, h.engine.Groceries(), name, h.heartbeat, h.log, nil)
	case streamRecommendations:
		serveStream(c, h.engine.Recommendations(), name, h.heartbeat, h.log, nil)
	case streamCart:
		serveStream(c, h.engine.Cart(), name, h.heartbeat, h.log, nil)
	case streamNotifications:
		// the zero value is the placeholder before the first notification
		serveStream(c, h.engine.Notifications(), name, h.heartbeat, h.log, func(n domain.Notification) bool {
			return n.Message == ""
		})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown stream %q", name)})
	}
}

func serveStream[T any](c *gin.Context, b *broadcast.Broadcaster[T], event string, heartbeat time.Duration, log *logger.Logger, skip func(T) bool) {
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	log.Debug("stream subscribed", "stream", event, "subscribers", b.SubscriberCount())

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case v, ok := <-sub.C():
			if !ok {
				return false
			}
			if skip != nil && skip(v) {
				return true
			}
			c.SSEvent(event, v)
			return true
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			return true
		}
	})

	log.Debug("stream closed", "stream", event)
}
