package usecase

import (
	"sort"

	"github.com/gut-puncture/list-to-cart/internal/domain"
)

// rankRecommendations orders recommendations by similarity score, highest
// first, and drops those below minSimilarity. Ties keep the service's order.
// The input slice is not modified.
func rankRecommendations(recs []domain.ProductRecommendation, minSimilarity float64) []domain.ProductRecommendation {
	ranked := make([]domain.ProductRecommendation, 0, len(recs))
	for _, rec := range recs {
		if rec.SimilarityScore < minSimilarity {
			continue
		}
		ranked = append(ranked, rec)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SimilarityScore > ranked[j].SimilarityScore
	})
	return ranked
}

// bestRecommendation returns the top ranked recommendation that has a SKU
func bestRecommendation(recs []domain.ProductRecommendation) (domain.ProductRecommendation, domain.SkuDetail, bool) {
	for _, rec := range rankRecommendations(recs, 0) {
		if sku, ok := rec.DefaultSku(); ok {
			return rec, sku, true
		}
	}
	return domain.ProductRecommendation{}, domain.SkuDetail{}, false
}
