package usecase

import (
	"sync"
	"time"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/broadcast"
)

// User-facing messages
const (
	msgRecognitionFailed     = "Failed to process image"
	msgRecommendationsFailed = "Failed to fetch recommendations"
	msgAddedToCart           = "Added to cart"
	msgAddToCartFailed       = "Failed to add to cart"
	msgRemovedFromCart       = "Removed from cart"
	msgQuantityUpdated       = "Quantity updated"
	msgUpdateQuantityFailed  = "Failed to update quantity"
)

// notifier publishes transient notifications and remembers the most recent
// failure since the last reset.
type notifier struct {
	out *broadcast.Broadcaster[domain.Notification]
	now func() time.Time

	mu        sync.Mutex
	lastError string
}

func newNotifier(bufferSize int) *notifier {
	return &notifier{
		out: broadcast.New(domain.Notification{}, broadcast.WithBufferSize(bufferSize)),
		now: time.Now,
	}
}

func (n *notifier) info(message string) {
	n.out.Publish(domain.Notification{
		Kind:    domain.NotificationInfo,
		Message: message,
		At:      n.now(),
	})
}

func (n *notifier) failure(message, itemName string, cycle uint64) {
	n.mu.Lock()
	n.lastError = message
	n.mu.Unlock()

	n.out.Publish(domain.Notification{
		Kind:     domain.NotificationError,
		Message:  message,
		ItemName: itemName,
		Cycle:    cycle,
		At:       n.now(),
	})
}

func (n *notifier) lastFailure() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastError
}

func (n *notifier) resetLastFailure() {
	n.mu.Lock()
	n.lastError = ""
	n.mu.Unlock()
}
