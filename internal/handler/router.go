package handler

import (
	"github.com/cloud-wave-best-zizon/storefront-service/pkg/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Cart   *CartHandler
	Order  *OrderHandler
	Admin  *AdminHandler
	Health *HealthHandler
}

// Register mounts every route under /api. Everything but health needs a
// bearer token; /api/admin additionally needs the admin role.
func Register(router *gin.Engine, h Handlers, verifier middleware.TokenVerifier) {
	api := router.Group("/api")
	api.GET("/health", h.Health.Health)

	authed := api.Group("", middleware.Auth(verifier))
	{
		authed.GET("/cart", h.Cart.GetCart)
		authed.POST("/cart/add", h.Cart.AddToCart)
		authed.PUT("/cart/update", h.Cart.UpdateCart)
		authed.DELETE("/cart/remove/:productId", h.Cart.RemoveFromCart)
		authed.DELETE("/cart/clear", h.Cart.ClearCart)

		authed.POST("/order/create", h.Order.CreateOrder)
		authed.GET("/orders", h.Order.ListOrders)
		authed.GET("/order/:orderId", h.Order.GetOrder)
		authed.PUT("/order/:orderId/cancel", h.Order.CancelOrder)
	}

	admin := authed.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/orders", h.Admin.ListOrders)
		admin.GET("/orders/stats", h.Admin.Stats)
		admin.PUT("/order/:orderId/status", h.Admin.UpdateStatus)
		admin.PUT("/order/:orderId/payment", h.Admin.UpdatePayment)
	}
}
