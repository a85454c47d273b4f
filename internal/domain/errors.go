package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRecognitionFailed is returned when the grocery list could not be read from an image
	ErrRecognitionFailed = errors.New("image recognition failed")

	// ErrRecommendationFailed is returned when recommendations for an item could not be fetched
	ErrRecommendationFailed = errors.New("recommendation fetch failed")

	// ErrInvalidInput is returned when caller-supplied input is malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")

	// ErrStaleGeneration is returned when work belongs to a superseded cycle
	ErrStaleGeneration = errors.New("stale generation")

	// ErrNoSku is returned when a product has no SKU to add to the cart
	ErrNoSku = errors.New("product has no sku")

	// ErrRemoteService is returned when the remote service answers with an unexpected status
	ErrRemoteService = errors.New("remote service request failed")
)

// RecognitionError fails a whole processing cycle
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrRecognitionFailed, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func (e *RecognitionError) Is(target error) bool { return target == ErrRecognitionFailed }

// RecommendationError is scoped to a single grocery item
type RecommendationError struct {
	ItemName string
	Err      error
}

func (e *RecommendationError) Error() string {
	return fmt.Sprintf("%s for %q: %v", ErrRecommendationFailed, e.ItemName, e.Err)
}

func (e *RecommendationError) Unwrap() error { return e.Err }

func (e *RecommendationError) Is(target error) bool { return target == ErrRecommendationFailed }

// ValidationError reports malformed input such as an empty image or a negative quantity
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }
