package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondError sends the unified error payload {"message": ...}. Messages
// are deliberately generic; no failure detail leaves this service.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// respondServerError is the catch-all for unexpected downstream failures
// (database unreachable, signing error). Not masked as a 401.
func respondServerError(c *gin.Context) {
	respondError(c, http.StatusInternalServerError, "internal server error")
}
