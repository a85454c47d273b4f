package domain

import (
	"context"
	"time"
)

// Recognizer extracts grocery items from an image
type Recognizer interface {
	RecognizeImage(ctx context.Context, image []byte) ([]GroceryItem, error)
}

// Recommender fetches product recommendations for one grocery item name
type Recommender interface {
	FetchRecommendations(ctx context.Context, itemName string) ([]ProductRecommendation, error)
}

// GroceryService is the remote recognition and recommendation service
type GroceryService interface {
	Recognizer
	Recommender
}

// RecommendationCache defines the interface for caching recommendation results
type RecommendationCache interface {
	Get(ctx context.Context, key string) ([]ProductRecommendation, error)
	Set(ctx context.Context, key string, recs []ProductRecommendation, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
