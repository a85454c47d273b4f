package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/infrastructure/metrics"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

const defaultCacheTTL = 24 * time.Hour

// CachingRecommender serves recommendations from a cache and falls back to
// the remote service on a miss. Cache failures never fail a fetch.
type CachingRecommender struct {
	next  domain.Recommender
	cache domain.RecommendationCache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachingRecommender wraps next with cache
func NewCachingRecommender(next domain.Recommender, cache domain.RecommendationCache, ttl time.Duration, log *logger.Logger) *CachingRecommender {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CachingRecommender{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.With("component", "CachingRecommender"),
	}
}

// FetchRecommendations looks up recommendations for an item.
// Flow: check cache -> fetch remote -> cache non-empty result -> return
func (r *CachingRecommender) FetchRecommendations(ctx context.Context, itemName string) ([]domain.ProductRecommendation, error) {
	key := recommendationCacheKey(itemName)

	cached, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.RecommendationCacheTotal.WithLabelValues("hit").Inc()
		return cached, nil
	case errors.Is(err, domain.ErrCacheMiss):
		metrics.RecommendationCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.RecommendationCacheTotal.WithLabelValues("error").Inc()
		r.log.Warn("cache read failed", "key", key, "error", err)
	}

	recs, err := r.next.FetchRecommendations(ctx, itemName)
	if err != nil {
		return nil, err
	}

	// An empty answer usually means the search backend had a bad moment; don't pin it
	if len(recs) > 0 {
		if err := r.cache.Set(ctx, key, recs, r.ttl); err != nil {
			r.log.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return recs, nil
}

// recommendationCacheKey creates a normalized cache key for an item name.
// Format: "recommendations:{normalized_item_name}"
func recommendationCacheKey(itemName string) string {
	return fmt.Sprintf("recommendations:%s", normalizeForCacheKey(itemName))
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
