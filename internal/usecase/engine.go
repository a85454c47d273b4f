package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/broadcast"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/metrics"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

// EngineConfig configures an Engine
type EngineConfig struct {
	Fanout             FanoutConfig
	NotificationBuffer int
}

// DefaultEngineConfig returns sensible defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Fanout:             DefaultFanoutConfig(),
		NotificationBuffer: 16,
	}
}

// Engine turns a photographed grocery list into a cart. It owns the
// processing cycle: recognition, the recommendation fan-out and the
// published grocery state. The cart is owned by the CartService it is
// given; the engine only adds notifications around cart mutations.
//
// All operations are safe for concurrent use. Background work runs until it
// completes or the engine is closed, regardless of the caller's context.
type Engine struct {
	recognizer domain.Recognizer
	fanout     *Fanout
	cart       *CartService
	gen        *Generation
	notes      *notifier
	log        *logger.Logger

	// mu orders cycle starts and phase publications
	mu        sync.Mutex
	groceries *broadcast.Broadcaster[domain.GroceryState]

	ctx    context.Context
	cancel context.CancelFunc
	// waitMu keeps wg.Add from racing a running wg.Wait
	waitMu sync.RWMutex
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEngine wires an engine. Recognition goes to recognizer, per-item
// lookups go to recommender.
func NewEngine(recognizer domain.Recognizer, recommender domain.Recommender, cart *CartService, cfg EngineConfig, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if cart == nil {
		cart = NewCartService(log)
	}

	gen := &Generation{}
	notes := newNotifier(cfg.NotificationBuffer)
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		recognizer: recognizer,
		fanout:     newFanout(recommender, gen, notes, cfg.Fanout, log),
		cart:       cart,
		gen:        gen,
		notes:      notes,
		log:        log.With("component", "Engine"),
		groceries: broadcast.New(domain.GroceryState{
			Phase: domain.PhaseIdle(),
			Items: []domain.GroceryItem{},
		}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SubmitImage starts a new processing cycle for image and returns its
// token. Any cycle still in flight is superseded: its results will never be
// published. The Loading phase is published before SubmitImage returns.
func (e *Engine) SubmitImage(ctx context.Context, image []byte) uint64 {
	e.mu.Lock()
	gen := e.gen.Advance()
	prev := e.groceries.Value()
	e.groceries.Publish(domain.GroceryState{
		Cycle: gen,
		Phase: domain.PhaseLoading(),
		Items: prev.Items,
	})
	e.notes.resetLastFailure()
	e.mu.Unlock()

	e.log.Info("processing image", "cycle", gen, "bytes", len(image))

	e.waitMu.RLock()
	e.wg.Add(1)
	e.waitMu.RUnlock()
	go func() {
		defer e.wg.Done()
		e.recognize(e.detach(ctx), gen, image)
	}()
	return gen
}

func (e *Engine) recognize(ctx context.Context, gen uint64, image []byte) {
	items, err := e.recognizer.RecognizeImage(ctx, image)
	if e.ctx.Err() != nil {
		e.log.Debug("engine closed during recognition", "cycle", gen)
		return
	}

	e.mu.Lock()
	if !e.gen.IsCurrent(gen) {
		e.mu.Unlock()
		metrics.StaleResultsDiscarded.WithLabelValues(stageRecognition).Inc()
		e.log.Debug("discarded stale recognition result", "cycle", gen)
		return
	}

	if err != nil {
		prev := e.groceries.Value()
		e.groceries.Publish(domain.GroceryState{
			Cycle: gen,
			Phase: domain.PhaseError(msgRecognitionFailed),
			Items: prev.Items,
		})
		e.mu.Unlock()

		metrics.RecognitionsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		e.log.Error("image recognition failed", "cycle", gen, "error", err)
		e.notes.failure(fmt.Sprintf("%s: %v", msgRecognitionFailed, err), "", gen)
		return
	}

	names, err := e.publishList(gen, items)
	e.mu.Unlock()
	if err != nil {
		return
	}

	metrics.RecognitionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	e.log.Info("grocery list recognized", "cycle", gen, "items", len(items))
	e.fanout.launch(ctx, gen, names)
}

// UpdateGroceryList replaces the grocery list without recognition, for
// example after the user edited it, and refetches every recommendation.
func (e *Engine) UpdateGroceryList(ctx context.Context, items []domain.GroceryItem) (uint64, error) {
	list := make([]domain.GroceryItem, 0, len(items))
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return 0, &domain.ValidationError{Field: fmt.Sprintf("items[%d].name", i), Reason: "must not be empty"}
		}
		list = append(list, item)
	}

	e.mu.Lock()
	gen := e.gen.Advance()
	e.notes.resetLastFailure()
	names, err := e.publishList(gen, list)
	e.mu.Unlock()
	if err != nil {
		return gen, err
	}

	e.log.Info("grocery list replaced", "cycle", gen, "items", len(list))
	e.fanout.launch(e.detach(ctx), gen, names)
	return gen, nil
}

// publishList clears the recommendations and publishes items as Ready.
// Caller holds e.mu.
func (e *Engine) publishList(gen uint64, items []domain.GroceryItem) ([]string, error) {
	names, err := e.fanout.begin(gen, items)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.GroceryItem{}
	}
	e.groceries.Publish(domain.GroceryState{
		Cycle: gen,
		Phase: domain.PhaseReady(),
		Items: items,
	})
	return names, nil
}

// RetryRecommendations refetches recommendations for one item of the
// current list
func (e *Engine) RetryRecommendations(ctx context.Context, itemName string) error {
	return e.fanout.Refetch(e.detach(ctx), itemName)
}

// AddToCart adds product with the given SKU and quantity
func (e *Engine) AddToCart(product domain.ProductRecommendation, sku domain.SkuDetail, quantity int) (domain.CartItem, error) {
	item, err := e.cart.AddItem(product, sku, quantity)
	if err != nil {
		e.notes.failure(msgAddToCartFailed, "", 0)
		return domain.CartItem{}, err
	}
	e.notes.info(msgAddedToCart)
	return item, nil
}

// AddDefaultToCart adds product with its default SKU
func (e *Engine) AddDefaultToCart(product domain.ProductRecommendation, quantity int) (domain.CartItem, error) {
	sku, ok := product.DefaultSku()
	if !ok {
		e.notes.failure(msgAddToCartFailed, "", 0)
		return domain.CartItem{}, fmt.Errorf("add %q: %w", product.ProductName, domain.ErrNoSku)
	}
	return e.AddToCart(product, sku, quantity)
}

// AddBestMatchToCart adds the highest ranked recommendation for itemName
// that has a SKU
func (e *Engine) AddBestMatchToCart(itemName string, quantity int) (domain.CartItem, error) {
	recs, ok := e.fanout.Updates().Value()[itemName]
	if !ok {
		e.notes.failure(msgAddToCartFailed, itemName, 0)
		return domain.CartItem{}, &domain.ValidationError{Field: "item", Reason: fmt.Sprintf("no recommendations for %q", itemName)}
	}
	product, sku, ok := bestRecommendation(recs)
	if !ok {
		e.notes.failure(msgAddToCartFailed, itemName, 0)
		return domain.CartItem{}, fmt.Errorf("add best match for %q: %w", itemName, domain.ErrNoSku)
	}
	return e.AddToCart(product, sku, quantity)
}

// RemoveFromCart removes the cart line with the given id. Unknown ids are
// ignored and produce no notification.
func (e *Engine) RemoveFromCart(id string) {
	if e.cart.RemoveItem(id) {
		e.notes.info(msgRemovedFromCart)
	}
}

// UpdateCartQuantity sets the quantity of a cart line. Negative quantities
// are rejected and leave the cart unchanged. Unknown ids are ignored and
// produce no notification.
func (e *Engine) UpdateCartQuantity(id string, quantity int) error {
	updated, err := e.cart.UpdateQuantity(id, quantity)
	if err != nil {
		e.notes.failure(msgUpdateQuantityFailed, "", 0)
		return err
	}
	if updated {
		e.notes.info(msgQuantityUpdated)
	}
	return nil
}

// Groceries returns the grocery state stream
func (e *Engine) Groceries() *broadcast.Broadcaster[domain.GroceryState] {
	return e.groceries
}

// Recommendations returns the recommendation map stream
func (e *Engine) Recommendations() *broadcast.Broadcaster[domain.RecommendationMap] {
	return e.fanout.Updates()
}

// Cart returns the cart stream
func (e *Engine) Cart() *broadcast.Broadcaster[domain.CartView] {
	return e.cart.Updates()
}

// Notifications returns the notification stream. Its initial value is the
// zero Notification, which subscribers should skip.
func (e *Engine) Notifications() *broadcast.Broadcaster[domain.Notification] {
	return e.notes.out
}

// Snapshot returns the current value of every stream
func (e *Engine) Snapshot() domain.AggregateState {
	return domain.AggregateState{
		Groceries:       e.groceries.Value(),
		Recommendations: e.fanout.Updates().Value(),
		Cart:            e.cart.View(),
		LastError:       e.notes.lastFailure(),
	}
}

// Wait blocks until all background work started so far has finished.
// Submissions made while Wait is draining block until it returns.
func (e *Engine) Wait() {
	e.waitMu.Lock()
	e.wg.Wait()
	e.waitMu.Unlock()
	e.fanout.Wait()
}

// Close cancels background work, waits for it and closes every stream
func (e *Engine) Close() {
	e.once.Do(func() {
		e.cancel()
		e.Wait()
		e.groceries.Close()
		e.fanout.Close()
		e.cart.Close()
		e.notes.out.Close()
	})
}

// detach keeps the values of ctx but ties cancellation to the engine's
// lifetime, so a finished request does not abort its cycle.
func (e *Engine) detach(ctx context.Context) context.Context {
	return detachedContext{Context: e.ctx, values: ctx}
}

type detachedContext struct {
	context.Context
	values context.Context
}

func (d detachedContext) Value(key any) any {
	return d.values.Value(key)
}
