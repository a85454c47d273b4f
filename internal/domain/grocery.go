package domain

// GroceryItem is a single line extracted from a grocery list image
type GroceryItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// SkuDetail describes one purchasable size of a product
type SkuDetail struct {
	IsDefault       bool    `json:"isDefault"`
	NumericQuantity float64 `json:"numericQuantity"`
	Quantity        string  `json:"quantity"`
	Unit            string  `json:"unit"`
}

// ProductRecommendation is a catalog product suggested for a grocery item
type ProductRecommendation struct {
	ProductName     string      `json:"productName"`
	Description     string      `json:"description"`
	SimilarityScore float64     `json:"similarityScore"` // 0-100
	Skus            []SkuDetail `json:"skus"`
	ImageURL        *string     `json:"imageUrl,omitempty"`
}

// DefaultSku returns the SKU flagged as default. When none is flagged the
// first SKU wins. ok is false only when the product has no SKUs at all.
func (p ProductRecommendation) DefaultSku() (sku SkuDetail, ok bool) {
	for _, s := range p.Skus {
		if s.IsDefault {
			return s, true
		}
	}
	if len(p.Skus) > 0 {
		return p.Skus[0], true
	}
	return SkuDetail{}, false
}

// RecommendationMap maps a grocery item name to its recommendations.
// Values are treated as immutable; use With to derive an updated map.
type RecommendationMap map[string][]ProductRecommendation

// With returns a copy of m with name set to recs. m itself is not modified.
func (m RecommendationMap) With(name string, recs []ProductRecommendation) RecommendationMap {
	next := make(RecommendationMap, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	next[name] = cloneRecommendations(recs)
	return next
}

// Has reports whether recommendations for name have been merged
func (m RecommendationMap) Has(name string) bool {
	_, ok := m[name]
	return ok
}

func cloneRecommendations(recs []ProductRecommendation) []ProductRecommendation {
	out := make([]ProductRecommendation, len(recs))
	for i, r := range recs {
		r.Skus = append([]SkuDetail(nil), r.Skus...)
		out[i] = r
	}
	return out
}
