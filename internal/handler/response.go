package handler

import (
	"errors"
	"net/http"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/cloud-wave-best-zizon/storefront-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput, domain.KindInsufficientStock, domain.KindIllegalTransition:
		return http.StatusBadRequest
	case domain.KindAccessDenied:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Internal causes are logged, never returned.
func fail(c *gin.Context, logger *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	body := gin.H{"status": false, "message": domain.PublicMessage(err)}
	var derr *domain.Error
	if errors.As(err, &derr) && derr.ProductID != "" && derr.Kind != domain.KindInternal {
		body["product_id"] = derr.ProductID
	}
	c.JSON(code, body)
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Debug("Invalid request",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid request format"})
}

func ok(c *gin.Context, code int, message string, fields gin.H) {
	body := gin.H{"status": true, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(code, body)
}

// actor returns the authenticated caller. Routes are always mounted behind
// middleware.Auth, so a miss is a wiring bug.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, found := middleware.ActorFrom(c)
	if !found {
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Authentication required"})
	}
	return a, found
}
