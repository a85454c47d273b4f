package grocery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gut-puncture/list-to-cart/internal/domain"
)

// wireGroceryItem is one entry of the process_image response
type wireGroceryItem struct {
	ItemName string        `json:"item_name"`
	Quantity flexibleFloat `json:"quantity"`
	Unit     string        `json:"unit"`
}

type wireSku struct {
	IsDefault       bool          `json:"is_default"`
	NumericQuantity flexibleFloat `json:"numeric_quantity"`
	Quantity        string        `json:"quantity"`
	Unit            string        `json:"unit"`
}

type wireRecommendation struct {
	ProductName     string    `json:"product_name"`
	Description     string    `json:"description"`
	SimilarityScore float64   `json:"similarity_score"`
	Skus            []wireSku `json:"skus"`
	ImageURL        *string   `json:"image_url"`
}

type recommendationsResponse struct {
	Recommendations []wireRecommendation `json:"recommendations"`
}

type recommendationsRequest struct {
	ItemName string `json:"item_name"`
}

// flexibleFloat accepts 2, 2.5, "2" and "2.5". Empty strings and null decode to 0.
type flexibleFloat float64

func (f *flexibleFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("quantity %q is not a number", s)
		}
		*f = flexibleFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexibleFloat(v)
	return nil
}

// maxUnwrapDepth bounds how many {"grocery_list": ...} layers are peeled off
const maxUnwrapDepth = 3

// DecodeGroceryList parses a process_image body. The service has been seen
// to answer with a bare list, with {"grocery_list": [...]}, and with the
// grocery_list field itself wrapping {"grocery_list": [...]} or {"items": [...]}.
func DecodeGroceryList(body []byte) ([]domain.GroceryItem, error) {
	raw := json.RawMessage(bytes.TrimSpace(body))

	for depth := 0; depth <= maxUnwrapDepth; depth++ {
		if len(raw) == 0 || string(raw) == "null" {
			return []domain.GroceryItem{}, nil
		}

		switch raw[0] {
		case '[':
			var items []wireGroceryItem
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("failed to decode grocery list: %w", err)
			}
			return mapToGroceryItems(items), nil
		case '{':
			var wrapper map[string]json.RawMessage
			if err := json.Unmarshal(raw, &wrapper); err != nil {
				return nil, fmt.Errorf("failed to decode grocery list: %w", err)
			}
			if inner, ok := wrapper["grocery_list"]; ok {
				raw = bytes.TrimSpace(inner)
				continue
			}
			if inner, ok := wrapper["items"]; ok {
				raw = bytes.TrimSpace(inner)
				continue
			}
			return nil, fmt.Errorf("failed to decode grocery list: missing grocery_list field")
		default:
			return nil, fmt.Errorf("failed to decode grocery list: unexpected JSON %.20q", string(raw))
		}
	}

	return nil, fmt.Errorf("failed to decode grocery list: nested too deeply")
}

// mapToGroceryItems converts wire items to domain items, skipping unnamed entries
func mapToGroceryItems(items []wireGroceryItem) []domain.GroceryItem {
	out := make([]domain.GroceryItem, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.ItemName)
		if name == "" {
			continue
		}
		out = append(out, domain.GroceryItem{
			Name:     name,
			Quantity: float64(item.Quantity),
			Unit:     strings.TrimSpace(item.Unit),
		})
	}
	return out
}

// mapToRecommendations converts wire recommendations to domain recommendations
func mapToRecommendations(recs []wireRecommendation) []domain.ProductRecommendation {
	out := make([]domain.ProductRecommendation, 0, len(recs))
	for _, rec := range recs {
		skus := make([]domain.SkuDetail, 0, len(rec.Skus))
		for _, sku := range rec.Skus {
			skus = append(skus, domain.SkuDetail{
				IsDefault:       sku.IsDefault,
				NumericQuantity: float64(sku.NumericQuantity),
				Quantity:        sku.Quantity,
				Unit:            sku.Unit,
			})
		}

		var imageURL *string
		if rec.ImageURL != nil && *rec.ImageURL != "" {
			u := *rec.ImageURL
			imageURL = &u
		}

		out = append(out, domain.ProductRecommendation{
			ProductName:     rec.ProductName,
			Description:     rec.Description,
			SimilarityScore: rec.SimilarityScore,
			Skus:            skus,
			ImageURL:        imageURL,
		})
	}
	return out
}
