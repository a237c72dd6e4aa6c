package handlers

import (
	"net/http"
	"strings"

	"cooling_control/internal/models"
	"cooling_control/internal/service"

	"github.com/gin-gonic/gin"
)

const operatorCtx = "operator"

// operatorMiddleware authenticates the bearer token and makes the operator
// visible both to handlers and, through the request context, to services.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	op, err := h.services.ParseToken(strings.TrimSpace(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(operatorCtx, op)
	c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), op))
	c.Next()
}

// operatorFrom returns the operator set by operatorMiddleware.
func operatorFrom(c *gin.Context) (models.Operator, bool) {
	v, ok := c.Get(operatorCtx)
	if !ok {
		return models.Operator{}, false
	}
	op, ok := v.(models.Operator)
	return op, ok
}
