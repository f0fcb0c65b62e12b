package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/charity-tasks-api/internal/service"
)

// AuditContext stamps the client address and agent on the request context
// so services can attribute audit log entries.
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestMeta(c.Request.Context(), service.RequestMeta{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
