package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// CatalogStore reads the product catalog
type CatalogStore interface {
	GetProducts(ctx context.Context, category string) ([]models.Product, error)
	GetProductCategories(ctx context.Context) ([]string, error)
	GetFeaturedProducts(ctx context.Context, limit int) ([]models.Product, error)
	SearchProducts(ctx context.Context, query string) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
}

// Handler contains HTTP handlers
type Handler struct {
	carts    *service.CartService
	checkout *service.CheckoutService
	webhooks *service.WebhookService
	catalog  CatalogStore
	sessions SessionResolver
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	carts *service.CartService,
	checkout *service.CheckoutService,
	webhooks *service.WebhookService,
	catalog CatalogStore,
	sessions SessionResolver,
) *Handler {
	return &Handler{
		carts:    carts,
		checkout: checkout,
		webhooks: webhooks,
		catalog:  catalog,
		sessions: sessions,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/stripe", h.stripeWebhook)
	router.POST("/webhooks/razorpay", h.razorpayWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/categories", h.listCategories)
		v1.GET("/products/featured", h.featuredProducts)
		v1.GET("/products/search", h.searchProducts)
		v1.GET("/products/:id", h.getProduct)

		// Cancel resolves the order by the provider session id on the
		// redirect URL, so it needs no user session.
		v1.POST("/checkout/cancel", h.cancelCheckout)

		authed := v1.Group("")
		authed.Use(requireSession(h.sessions))
		{
			authed.GET("/cart", h.getCart)
			authed.POST("/cart/items", h.addCartItem)
			authed.PATCH("/cart/items/:id", h.updateCartItem)
			authed.DELETE("/cart/items/:id", h.removeCartItem)
			authed.DELETE("/cart", h.clearCart)

			authed.POST("/checkout/stripe", h.beginStripeCheckout)
			authed.POST("/checkout/razorpay", h.beginRazorpayCheckout)
			authed.POST("/checkout/razorpay/verify", h.verifyRazorpayPayment)
			authed.GET("/checkout/session/:session_id", h.getCheckoutSession)

			authed.GET("/orders", h.listOrders)
			authed.GET("/orders/:id", h.getOrder)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.GetProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.GetProductCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) featuredProducts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "8"))
	if err != nil || limit < 1 {
		limit = 8
	}
	products, err := h.catalog.GetFeaturedProducts(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) searchProducts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing search query"})
		return
	}
	products, err := h.catalog.SearchProducts(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.carts.List(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.carts.Add(c.Request.Context(), sessionFromContext(c), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.carts.SetQuantity(c.Request.Context(), sessionFromContext(c), c.Param("id"), req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	view, err := h.carts.Remove(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	view, err := h.carts.Clear(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) beginStripeCheckout(c *gin.Context) {
	var form service.CheckoutForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if form.IdempotencyKey == "" {
		form.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.BeginStripeCheckout(c.Request.Context(), sessionFromContext(c), &form)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) beginRazorpayCheckout(c *gin.Context) {
	var form service.CheckoutForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if form.IdempotencyKey == "" {
		form.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.BeginRazorpayCheckout(c.Request.Context(), sessionFromContext(c), &form)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) verifyRazorpayPayment(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.checkout.VerifyRazorpayPayment(c.Request.Context(), sessionFromContext(c), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paid"})
}

type cancelCheckoutRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (h *Handler) cancelCheckout(c *gin.Context) {
	var req cancelCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.checkout.CancelCheckout(c.Request.Context(), req.SessionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// getCheckoutSession resolves an order from the checkout session id on the
// success redirect, so the confirmation page can render without an order id
func (h *Handler) getCheckoutSession(c *gin.Context) {
	order, items, err := h.checkout.GetOrderBySession(c.Request.Context(), sessionFromContext(c), c.Param("session_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.checkout.ListOrders(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, items, err := h.checkout.GetOrder(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

// stripeWebhook receives asynchronous payment notifications. The raw body is
// read before any parsing because the signature covers the exact bytes.
func (h *Handler) stripeWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	err = h.webhooks.HandleStripeEvent(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	h.respondWebhook(c, err)
}

func (h *Handler) razorpayWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	err = h.webhooks.HandleRazorpayEvent(c.Request.Context(), body, c.GetHeader("X-Razorpay-Signature"))
	h.respondWebhook(c, err)
}

// respondWebhook acks everything the provider should not retry. Signature
// failures get 400, conflicting transitions get 409, and only genuine
// processing failures get a retryable 500. Bodies never leak internal state.
func (h *Handler) respondWebhook(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var stateErr *models.StateTransitionError
	switch {
	case errors.Is(err, models.ErrSignatureInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook Error"})
	case errors.As(err, &stateErr):
		h.logger.Error("Webhook hit conflicting order state", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "Webhook Error"})
	default:
		h.logger.Error("Webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook Error"})
	}
}

// respondError maps domain errors onto HTTP statuses. Validation and auth
// surface actionable messages; signature and state errors stay generic.
func (h *Handler) respondError(c *gin.Context, err error) {
	var stateErr *models.StateTransitionError
	switch {
	case errors.Is(err, models.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrSignatureInvalid):
		h.logger.Warn("Signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment verification failed"})
	case errors.As(err, &stateErr):
		h.logger.Error("Conflicting order state", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "Order cannot be updated"})
	case errors.Is(err, models.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unavailable, please retry"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
