package handler

import (
	"net/http"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/service"
	"github.com/cloud-wave-best-zizon/storefront-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderService
	logger   *zap.Logger
}

func NewOrderHandler(checkout *service.CheckoutService, orders *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		logger:   logger,
	}
}

type createOrderRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	Notes           string                 `json:"notes"`
}

type cancelOrderRequest struct {
	CancelReason string `json:"cancelReason"`
}

type listQuery struct {
	Status string `form:"status"`
	Search string `form:"search"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

func (q listQuery) filter() domain.OrderFilter {
	return domain.OrderFilter{
		Status: domain.OrderStatus(q.Status),
		Search: q.Search,
		Page:   q.Page,
		Limit:  q.Limit,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	requestID := middleware.GetRequestID(c)
	order, err := h.checkout.Checkout(c.Request.Context(), a.UserID, service.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		IdempotencyKey:  c.GetHeader(IdempotencyKeyHeader),
		RequestID:       requestID,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusCreated, "Order created successfully", gin.H{"order": order})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, h.logger, domain.ErrInvalidPage)
		return
	}
	page, err := h.orders.ListMine(c.Request.Context(), a, q.filter())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Orders fetched successfully", gin.H{
		"orders":     page.Orders,
		"pagination": page.Pagination,
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), a, c.Param("orderId"))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Order fetched successfully", gin.H{"order": order})
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var req cancelOrderRequest
	// The body is optional.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}
	order, err := h.orders.Cancel(c.Request.Context(), a, c.Param("orderId"), req.CancelReason)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Order cancelled successfully", gin.H{"order": order})
}
