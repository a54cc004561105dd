package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "Library Management Gateway"

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"service":   serviceName,
		"version":   s.version,
	})
}

// logout only acknowledges the call, tokens live with the client
func (s *Server) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
