package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
)

// JSON sends a success response with the given body. Bodies are flat JSON
// objects; field names follow the platform API contract.
func JSON(c *gin.Context, status int, body interface{}) {
	c.JSON(status, body)
}

// OK responds with HTTP 200.
func OK(c *gin.Context, body interface{}) {
	JSON(c, http.StatusOK, body)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, body interface{}) {
	JSON(c, http.StatusCreated, body)
}

// Error sends an error response in the fixed platform shape
// {"error": <category>, "message": <human text>}.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.JSON(appErr.Status, gin.H{"error": appErr.Code, "message": appErr.Message})
}
