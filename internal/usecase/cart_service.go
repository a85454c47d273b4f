package usecase

import (
	"sync"

	"github.com/google/uuid"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/broadcast"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/metrics"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

// Cart operation label values
const (
	cartOpAdd    = "add"
	cartOpRemove = "remove"
	cartOpUpdate = "update_quantity"
)

// CartService owns the cart. Every mutation publishes a fresh CartView, and
// published item slices are never modified afterwards.
type CartService struct {
	mu    sync.Mutex
	items []domain.CartItem
	out   *broadcast.Broadcaster[domain.CartView]
	newID func() string
	log   *logger.Logger
}

// NewCartService creates an empty cart
func NewCartService(log *logger.Logger) *CartService {
	if log == nil {
		log = logger.NewNop()
	}
	return &CartService{
		items: []domain.CartItem{},
		out:   broadcast.New(domain.NewCartView([]domain.CartItem{})),
		newID: uuid.NewString,
		log:   log.With("component", "CartService"),
	}
}

// Updates returns the cart stream
func (s *CartService) Updates() *broadcast.Broadcaster[domain.CartView] {
	return s.out
}

// AddItem appends a new line to the cart. Adding the same product twice
// yields two separate lines.
func (s *CartService) AddItem(product domain.ProductRecommendation, sku domain.SkuDetail, quantity int) (domain.CartItem, error) {
	if quantity < 0 {
		metrics.CartOperationsTotal.WithLabelValues(cartOpAdd, metrics.OutcomeFailure).Inc()
		return domain.CartItem{}, &domain.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	item := domain.CartItem{
		ID:       s.newID(),
		Product:  product,
		Sku:      sku,
		Quantity: quantity,
	}

	s.mu.Lock()
	next := make([]domain.CartItem, 0, len(s.items)+1)
	next = append(next, s.items...)
	next = append(next, item)
	s.commitLocked(next)
	s.mu.Unlock()

	metrics.CartOperationsTotal.WithLabelValues(cartOpAdd, metrics.OutcomeSuccess).Inc()
	s.log.Debug("cart item added", "id", item.ID, "product", product.ProductName, "sku", sku.Quantity+sku.Unit, "quantity", quantity)
	return item, nil
}

// RemoveItem deletes the line with the given id. Unknown ids are a no-op;
// the return value reports whether anything was removed.
func (s *CartService) RemoveItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		metrics.CartOperationsTotal.WithLabelValues(cartOpRemove, metrics.OutcomeSuccess).Inc()
		return false
	}

	next := make([]domain.CartItem, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)
	s.commitLocked(next)

	metrics.CartOperationsTotal.WithLabelValues(cartOpRemove, metrics.OutcomeSuccess).Inc()
	return true
}

// UpdateQuantity sets the quantity of the line with the given id. A quantity
// of zero keeps the line. Unknown ids are a no-op and report false.
func (s *CartService) UpdateQuantity(id string, quantity int) (bool, error) {
	if quantity < 0 {
		metrics.CartOperationsTotal.WithLabelValues(cartOpUpdate, metrics.OutcomeFailure).Inc()
		return false, &domain.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		metrics.CartOperationsTotal.WithLabelValues(cartOpUpdate, metrics.OutcomeSuccess).Inc()
		return false, nil
	}

	next := make([]domain.CartItem, len(s.items))
	copy(next, s.items)
	next[idx].Quantity = quantity
	s.commitLocked(next)

	metrics.CartOperationsTotal.WithLabelValues(cartOpUpdate, metrics.OutcomeSuccess).Inc()
	return true, nil
}

// ItemCount returns the sum of quantities across all lines
func (s *CartService) ItemCount() int {
	return s.View().Count
}

// View returns the current cart snapshot
func (s *CartService) View() domain.CartView {
	return s.out.Value()
}

// Close ends the cart stream
func (s *CartService) Close() {
	s.out.Close()
}

func (s *CartService) indexLocked(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// commitLocked installs next and publishes it while s.mu is held, so views
// reach subscribers in mutation order.
func (s *CartService) commitLocked(next []domain.CartItem) {
	s.items = next
	view := domain.NewCartView(next)
	s.out.Publish(view)
	metrics.CartItemCount.Set(float64(view.Count))
}
