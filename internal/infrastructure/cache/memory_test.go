package cache

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/gut-puncture/list-to-cart/internal/domain"
)

func sampleRecommendations(name string) []domain.ProductRecommendation {
	url := "http://img/" + name + ".png"
	return []domain.ProductRecommendation{
		{
			ProductName:     name,
			Description:     "fresh " + name,
			SimilarityScore: 82.4,
			Skus:            []domain.SkuDetail{{IsDefault: true, NumericQuantity: 1, Quantity: "1", Unit: "gallon"}},
			ImageURL:        &url,
		},
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value []domain.ProductRecommendation
		ttl   time.Duration
	}{
		{
			name:  "store and retrieve recommendations",
			key:   "recommendations:milk",
			value: sampleRecommendations("Whole Milk"),
			ttl:   1 * time.Minute,
		},
		{
			name:  "store and retrieve empty list",
			key:   "recommendations:dragonfruit",
			value: []domain.ProductRecommendation{},
			ttl:   1 * time.Minute,
		},
		{
			name:  "store with short TTL",
			key:   "recommendations:eggs",
			value: sampleRecommendations("Eggs"),
			ttl:   1 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cache.Set(ctx, tt.key, tt.value, tt.ttl); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			// For short TTL test, wait for expiration
			if tt.ttl < 10*time.Millisecond {
				time.Sleep(10 * time.Millisecond)
				_, err := cache.Get(ctx, tt.key)
				if !errors.Is(err, domain.ErrCacheMiss) {
					t.Errorf("Expected cache miss after expiration, got error = %v", err)
				}
				return
			}

			got, err := cache.Get(ctx, tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("Get() = %+v, want %+v", got, tt.value)
			}
		})
	}
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", sampleRecommendations("Milk"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	first, _ := cache.Get(ctx, "k")
	first[0].Skus[0].Unit = "changed"

	second, _ := cache.Get(ctx, "k")
	if second[0].Skus[0].Unit != "gallon" {
		t.Errorf("cached value was mutated through a previous Get: %q", second[0].Skus[0].Unit)
	}
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()

	_, err := cache.Get(context.Background(), "non-existent-key")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	key := "delete-test"
	if err := cache.Set(ctx, key, sampleRecommendations("Milk"), 1*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := cache.Get(ctx, key); err != nil {
		t.Fatalf("Get() before delete error = %v", err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	if _, err := cache.Get(ctx, key); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_SizeAndClear(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 for empty cache", size)
	}

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		if err := cache.Set(ctx, key, sampleRecommendations(key), 1*time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if size := cache.Size(); size != 5 {
		t.Errorf("Size() = %d, want 5", size)
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}
}

func TestMemoryCache_CleanupRemovesExpired(t *testing.T) {
	cache := newMemoryCache(5 * time.Millisecond)
	defer cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "short", sampleRecommendations("Milk"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "long", sampleRecommendations("Eggs"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for cache.Size() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Size() = %d, want 1 after cleanup", cache.Size())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := string(rune('a' + id))
			if err := cache.Set(ctx, key, sampleRecommendations(key), 1*time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			if _, err := cache.Get(ctx, key); err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemoryCache()
	if err := cache.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
