package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	maxAge       = "300"
)

// New builds a CORS middleware for the given origin allowlist. An empty list
// allows every origin; preflight OPTIONS requests are answered directly.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		headers := c.Writer.Header()
		origin := c.GetHeader("Origin")

		switch {
		case origin != "":
			if _, ok := allowed[strings.TrimRight(origin, "/")]; ok || allowAll {
				headers.Set("Access-Control-Allow-Origin", origin)
			}
		case allowAll:
			headers.Set("Access-Control-Allow-Origin", "*")
		}

		headers.Set("Vary", "Origin")
		headers.Set("Access-Control-Allow-Credentials", "true")
		headers.Set("Access-Control-Allow-Headers", allowHeaders)
		headers.Set("Access-Control-Allow-Methods", allowMethods)
		headers.Set("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
