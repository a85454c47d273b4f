package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gut-puncture/list-to-cart/internal/domain"
)

const recognizedList = `{"grocery_list":[
	{"item_name":"milk","quantity":"2","unit":"l"},
	{"item_name":"bread","quantity":1,"unit":""}
]}`

var catalog = map[string]string{
	"milk": `{"recommendations":[
		{"product_name":"Skimmed Milk","description":"","similarity_score":72,"skus":[{"is_default":true,"numeric_quantity":1,"quantity":"1","unit":"l"}]},
		{"product_name":"Whole Milk","description":"","similarity_score":91,"skus":[{"is_default":false,"numeric_quantity":500,"quantity":"500","unit":"ml"},{"is_default":true,"numeric_quantity":1,"quantity":"1","unit":"l"}]}
	]}`,
	"bread": `{"recommendations":[
		{"product_name":"Sourdough Loaf","description":"","similarity_score":88,"skus":[{"is_default":true,"numeric_quantity":400,"quantity":"400","unit":"g"}]}
	]}`,
}

func fakeRemote(t *testing.T, recognizeStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/process_image":
			if recognizeStatus != http.StatusOK {
				w.WriteHeader(recognizeStatus)
				_, _ = w.Write([]byte(`{"error":"unreadable image"}`))
				return
			}
			_, _ = w.Write([]byte(recognizedList))
		case "/recommendations":
			var req struct {
				ItemName string `json:"item_name"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			body, ok := catalog[req.ItemName]
			if !ok {
				body = `{"recommendations":[]}`
			}
			_, _ = w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeImage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.jpg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"listcart", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestScan_Summary(t *testing.T) {
	remote := fakeRemote(t, http.StatusOK)
	image := writeImage(t, "jpeg bytes")

	out, err := runCLI(t, "--base-url", remote.URL, "scan", "--image", image)
	require.NoError(t, err)

	assert.Contains(t, out, "ITEM")
	assert.Contains(t, out, "milk")
	assert.Contains(t, out, "Whole Milk")
	assert.Contains(t, out, "Sourdough Loaf")
	assert.NotContains(t, out, "CART", "nothing is added without --add-defaults")
}

func TestScan_AddDefaultsJSON(t *testing.T) {
	remote := fakeRemote(t, http.StatusOK)
	image := writeImage(t, "jpeg bytes")

	out, err := runCLI(t, "--base-url", remote.URL, "scan", "--image", image, "--add-defaults", "--json")
	require.NoError(t, err)

	var snap domain.AggregateState
	require.NoError(t, json.Unmarshal([]byte(out), &snap))

	assert.Equal(t, domain.PhaseKindReady, snap.Groceries.Phase.Kind)
	require.Len(t, snap.Groceries.Items, 2)
	assert.Equal(t, 2.0, snap.Groceries.Items[0].Quantity)
	require.Len(t, snap.Recommendations["milk"], 2)
	assert.Equal(t, "Whole Milk", snap.Recommendations["milk"][0].ProductName)

	require.Len(t, snap.Cart.Items, 2)
	assert.Equal(t, 2, snap.Cart.Count)
	assert.Equal(t, "Whole Milk", snap.Cart.Items[0].Product.ProductName)
	assert.Equal(t, "l", snap.Cart.Items[0].Sku.Unit)
	assert.Equal(t, "Sourdough Loaf", snap.Cart.Items[1].Product.ProductName)
}

func TestScan_AddDefaultsSummary(t *testing.T) {
	remote := fakeRemote(t, http.StatusOK)
	image := writeImage(t, "jpeg bytes")

	out, err := runCLI(t, "--base-url", remote.URL, "scan", "--image", image, "--add-defaults")
	require.NoError(t, err)

	assert.Contains(t, out, "CART")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "[info]")
	assert.Contains(t, out, "Added to cart")
}

func TestScan_MinSimilarity(t *testing.T) {
	remote := fakeRemote(t, http.StatusOK)
	image := writeImage(t, "jpeg bytes")

	out, err := runCLI(t, "--base-url", remote.URL, "scan", "--image", image, "--json", "--min-similarity", "80")
	require.NoError(t, err)

	var snap domain.AggregateState
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Recommendations["milk"], 1)
	assert.Equal(t, "Whole Milk", snap.Recommendations["milk"][0].ProductName)
}

func TestScan_RecognitionFailure(t *testing.T) {
	remote := fakeRemote(t, http.StatusBadRequest)
	image := writeImage(t, "not an image")

	_, err := runCLI(t, "--base-url", remote.URL, "scan", "--image", image)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to process image")
}

func TestScan_BadInput(t *testing.T) {
	t.Setenv("LISTCART_REMOTE_BASE_URL", "")
	remote := fakeRemote(t, http.StatusOK)

	tests := []struct {
		name string
		args []string
	}{
		{
			name: "missing base url",
			args: []string{"scan", "--image", writeImage(t, "jpeg bytes")},
		},
		{
			name: "missing image file",
			args: []string{"--base-url", remote.URL, "scan", "--image", filepath.Join(t.TempDir(), "nope.jpg")},
		},
		{
			name: "empty image file",
			args: []string{"--base-url", remote.URL, "scan", "--image", writeImage(t, "")},
		},
		{
			name: "image flag not given",
			args: []string{"--base-url", remote.URL, "scan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Errorf("expected error for args %v", tt.args)
			}
		})
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		item domain.GroceryItem
		want string
	}{
		{domain.GroceryItem{Name: "milk", Quantity: 2, Unit: "l"}, "2 l"},
		{domain.GroceryItem{Name: "eggs", Quantity: 12}, "12"},
		{domain.GroceryItem{Name: "salt", Unit: "pinch"}, "pinch"},
		{domain.GroceryItem{Name: "flour", Quantity: 0.5, Unit: "kg"}, "0.5 kg"},
	}

	for _, tt := range tests {
		t.Run(tt.item.Name, func(t *testing.T) {
			if got := formatQuantity(tt.item); got != tt.want {
				t.Errorf("formatQuantity(%+v) = %q, want %q", tt.item, got, tt.want)
			}
		})
	}
}
