package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agrosense/internal/prefs"
)

// GET /api/preferences
func (s *Server) getPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, prefs.LoadPreferences(s.prefs))
}

// PUT /api/preferences
func (s *Server) putPreferences(c *gin.Context) {
	var p prefs.Preferences
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := prefs.SavePreferences(s.prefs, p); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs.LoadPreferences(s.prefs))
}
