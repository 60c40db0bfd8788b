package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campus-cloud/storage-api/internal/middleware"
	"github.com/campus-cloud/storage-api/internal/models"
)

func principalFromContext(c *gin.Context) (models.Principal, bool) {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := value.(models.Principal)
	return principal, ok
}
