package cors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// New returns the platform CORS middleware. The header set is a fixed
// contract shared with the web and mobile clients: any origin, the listed
// methods, and the Content-Type/Authorization request headers.
func New() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
