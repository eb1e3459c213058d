package handler

import (
	"net/http"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves /api/admin. The role check happens in
// middleware.RequireAdmin and again in the service.
type AdminHandler struct {
	orders *service.OrderService
	logger *zap.Logger
}

func NewAdminHandler(orders *service.OrderService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, logger: logger}
}

type statusRequest struct {
	Status         string     `json:"status" binding:"required"`
	TrackingNumber string     `json:"trackingNumber"`
	DeliveryDate   *time.Time `json:"deliveryDate"`
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, h.logger, domain.ErrInvalidPage)
		return
	}
	page, err := h.orders.ListAll(c.Request.Context(), a, q.filter())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Orders fetched successfully", gin.H{
		"orders":     page.Orders,
		"statistics": page.Statistics,
		"pagination": page.Pagination,
	})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	stats, err := h.orders.Stats(c.Request.Context(), a)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Statistics fetched successfully", gin.H{"stats": stats})
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), a, c.Param("orderId"), domain.StatusChange{
		Status:         domain.OrderStatus(req.Status),
		TrackingNumber: req.TrackingNumber,
		DeliveryDate:   req.DeliveryDate,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Order status updated successfully", gin.H{"order": order})
}

func (h *AdminHandler) UpdatePayment(c *gin.Context) {
	a, found := actor(c)
	if !found {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	order, err := h.orders.UpdatePaymentStatus(c.Request.Context(), a, c.Param("orderId"), domain.PaymentStatus(req.PaymentStatus))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, http.StatusOK, "Payment status updated successfully", gin.H{"order": order})
}
