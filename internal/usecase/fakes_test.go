package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gut-puncture/list-to-cart/internal/domain"
)

// MockGroceryService is a hand-written domain.GroceryService. Calls for a key
// registered with gate block until the gate is released.
type MockGroceryService struct {
	mu          sync.Mutex
	images      map[string]imageResult
	recs        map[string]recsResult
	gates       map[string]chan struct{}
	recognized  int
	fetchCounts map[string]int
}

type imageResult struct {
	items []domain.GroceryItem
	err   error
}

type recsResult struct {
	recs []domain.ProductRecommendation
	err  error
}

func NewMockGroceryService() *MockGroceryService {
	return &MockGroceryService{
		images:      make(map[string]imageResult),
		recs:        make(map[string]recsResult),
		gates:       make(map[string]chan struct{}),
		fetchCounts: make(map[string]int),
	}
}

func (m *MockGroceryService) onImage(image string, items []domain.GroceryItem, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[image] = imageResult{items: items, err: err}
}

func (m *MockGroceryService) onItem(name string, recs []domain.ProductRecommendation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[name] = recsResult{recs: recs, err: err}
}

// gate makes calls keyed by key block until the returned func is called
func (m *MockGroceryService) gate(key string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[key] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *MockGroceryService) wait(ctx context.Context, key string) error {
	m.mu.Lock()
	ch, ok := m.gates[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockGroceryService) RecognizeImage(ctx context.Context, image []byte) ([]domain.GroceryItem, error) {
	key := "image:" + string(image)
	if err := m.wait(ctx, key); err != nil {
		return nil, &domain.RecognitionError{Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.recognized++
	res, ok := m.images[string(image)]
	if !ok {
		return nil, &domain.RecognitionError{Err: errors.New("unknown image")}
	}
	return res.items, res.err
}

func (m *MockGroceryService) FetchRecommendations(ctx context.Context, itemName string) ([]domain.ProductRecommendation, error) {
	if err := m.wait(ctx, "item:"+itemName); err != nil {
		return nil, &domain.RecommendationError{ItemName: itemName, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCounts[itemName]++
	res, ok := m.recs[itemName]
	if !ok {
		return []domain.ProductRecommendation{}, nil
	}
	return res.recs, res.err
}

func (m *MockGroceryService) fetchCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCounts[name]
}

// MockRecommendationCache is a hand-written domain.RecommendationCache
type MockRecommendationCache struct {
	mu        sync.Mutex
	data      map[string][]domain.ProductRecommendation
	getError  error
	setError  error
	getCalled bool
	setCalled bool
	lastTTL   time.Duration
}

func NewMockRecommendationCache() *MockRecommendationCache {
	return &MockRecommendationCache{
		data: make(map[string][]domain.ProductRecommendation),
	}
}

func (m *MockRecommendationCache) Get(ctx context.Context, key string) ([]domain.ProductRecommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockRecommendationCache) Set(ctx context.Context, key string, recs []domain.ProductRecommendation, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalled = true
	m.lastTTL = ttl
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = recs
	return nil
}

func (m *MockRecommendationCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func product(name string, score float64, skus ...domain.SkuDetail) domain.ProductRecommendation {
	return domain.ProductRecommendation{
		ProductName:     name,
		Description:     name + " description",
		SimilarityScore: score,
		Skus:            skus,
	}
}

func sku(quantity, unit string, isDefault bool) domain.SkuDetail {
	return domain.SkuDetail{IsDefault: isDefault, Quantity: quantity, Unit: unit}
}

func groceries(names ...string) []domain.GroceryItem {
	items := make([]domain.GroceryItem, 0, len(names))
	for _, name := range names {
		items = append(items, domain.GroceryItem{Name: name, Quantity: 1})
	}
	return items
}
