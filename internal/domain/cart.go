package domain

// CartItem is one line in the cart. Two items with the same product and SKU
// are still separate entities when added separately.
type CartItem struct {
	ID       string                `json:"id"`
	Product  ProductRecommendation `json:"product"`
	Sku      SkuDetail             `json:"sku"`
	Quantity int                   `json:"quantity"`
}

// CartView is the published cart snapshot
type CartView struct {
	Items []CartItem `json:"items"`
	Count int        `json:"count"` // sum of item quantities
}

// NewCartView builds a view over items, computing Count from the quantities
func NewCartView(items []CartItem) CartView {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return CartView{Items: items, Count: count}
}
