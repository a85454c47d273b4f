package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gut-puncture/list-to-cart/internal/domain"
	"github.com/gut-puncture/list-to-cart/internal/pkg/logger"
	"github.com/gut-puncture/list-to-cart/internal/usecase"
)

const (
	serviceName          = "list-to-cart"
	serviceVersion       = "1.0.0"
	imageFormField       = "image"
	defaultMaxImageBytes = 10 << 20
	defaultHeartbeat     = 15 * time.Second
	defaultCartQuantity  = 1
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine        *usecase.Engine
	log           *logger.Logger
	maxImageBytes int64
	heartbeat     time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *usecase.Engine, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		engine:        engine,
		log:           log.With("component", "Handler"),
		maxImageBytes: defaultMaxImageBytes,
		heartbeat:     defaultHeartbeat,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// SubmitImage accepts a grocery list photo as multipart field "image" and
// starts a processing cycle. Processing continues after the response.
func (h *Handler) SubmitImage(c *gin.Context) {
	file, err := c.FormFile(imageFormField)
	if err != nil {
		respondError(c, &domain.ValidationError{Field: imageFormField, Reason: "is required"})
		return
	}
	if file.Size == 0 {
		respondError(c, &domain.ValidationError{Field: imageFormField, Reason: "must not be empty"})
		return
	}
	if file.Size > h.maxImageBytes {
		respondError(c, &domain.ValidationError{Field: imageFormField, Reason: "is too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	image, err := io.ReadAll(io.LimitReader(f, h.maxImageBytes))
	if err != nil {
		respondError(c, err)
		return
	}

	cycle := h.engine.SubmitImage(c.Request.Context(), image)
	c.JSON(http.StatusAccepted, gin.H{"cycle": cycle})
}

type groceryListRequest struct {
	Items []domain.GroceryItem `json:"items" binding:"required"`
}

// UpdateGroceryList replaces the grocery list and refetches recommendations
func (h *Handler) UpdateGroceryList(c *gin.Context) {
	var req groceryListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	cycle, err := h.engine.UpdateGroceryList(c.Request.Context(), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"cycle": cycle})
}

// RetryRecommendations refetches recommendations for one grocery item
func (h *Handler) RetryRecommendations(c *gin.Context) {
	name := c.Param("name")
	if err := h.engine.RetryRecommendations(c.Request.Context(), name); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"item": name})
}

// GetState returns the current value of every stream
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

// GetCart returns the cart
func (h *Handler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Cart().Value())
}

// addCartItemRequest adds either an explicit product (optionally with a SKU)
// or the best match for a grocery item name
type addCartItemRequest struct {
	Product  *domain.ProductRecommendation `json:"product"`
	Sku      *domain.SkuDetail             `json:"sku"`
	ItemName string                        `json:"itemName"`
	Quantity *int                          `json:"quantity"`
}

// AddCartItem adds a line to the cart
func (h *Handler) AddCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &domain.ValidationError{Field: "body", Reason: err.Error()})
		return
	}

	quantity := defaultCartQuantity
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	var (
		item domain.CartItem
		err  error
	)
	switch {
	case req.Product != nil && req.Sku != nil:
		item, err = h.engine.AddToCart(*req.Product, *req.Sku, quantity)
	case req.Product != nil:
		item, err = h.engine.AddDefaultToCart(*req.Product, quantity)
	case req.ItemName != "":
		item, err = h.engine.AddBestMatchToCart(req.ItemName, quantity)
	default:
		err = &domain.ValidationError{Field: "product", Reason: "or itemName is required"}
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// UpdateCartItem changes the quantity of a cart line
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &domain.ValidationError{Field: "quantity", Reason: "is required"})
		return
	}

	if err := h.engine.UpdateCartQuantity(c.Param("id"), *req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.engine.Cart().Value())
}

// RemoveCartItem deletes a cart line. Unknown ids are not an error.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	h.engine.RemoveFromCart(c.Param("id"))
	c.JSON(http.StatusOK, h.engine.Cart().Value())
}

// respondError maps domain errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoSku):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStaleGeneration):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
