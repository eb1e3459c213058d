package handler

import (
	"net/http"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts  *service.CartService
	logger *zap.Logger
}

func NewCartHandler(carts *service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type cartLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"required"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	view, err := h.carts.View(c.Request.Context(), a.UserID)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	message := "Cart fetched successfully"
	if len(view.Items) == 0 && len(view.MissingProducts) == 0 {
		message = "Cart is empty"
	}
	h.respond(c, message, view)
}

func (h *CartHandler) AddToCart(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	view, err := h.carts.Add(c.Request.Context(), a.UserID, req.ProductID, *req.Quantity)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	h.respond(c, "Item added to cart successfully", view)
}

func (h *CartHandler) UpdateCart(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	view, err := h.carts.Update(c.Request.Context(), a.UserID, req.ProductID, *req.Quantity)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	h.respond(c, "Cart updated successfully", view)
}

func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	view, err := h.carts.Remove(c.Request.Context(), a.UserID, c.Param("productId"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	h.respond(c, "Item removed from cart successfully", view)
}

func (h *CartHandler) ClearCart(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), a.UserID); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Cart cleared successfully", gin.H{
		"cart":  []domain.CartItemView{},
		"total": "0.00",
	})
}

func (h *CartHandler) respond(c *gin.Context, message string, view *domain.CartView) {
	fields := gin.H{
		"cart":  view.Items,
		"total": view.Total.StringFixed(2),
	}
	if len(view.MissingProducts) > 0 {
		fields["missing_products"] = view.MissingProducts
	}
	ok(c, http.StatusOK, message, fields)
}
