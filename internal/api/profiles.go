package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"agrosense/internal/models"
	"agrosense/pkg/logger"
)

// refresh re-renders the session after the active profile may have changed
func (s *Server) refresh(c *gin.Context) {
	if err := s.session.Refresh(c.Request.Context()); err != nil {
		logger.Warnf("API: failed to refresh view: %v", err)
	}
}

// GET /api/profiles
func (s *Server) listProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"profiles": s.profiles.List(),
		"selected": s.profiles.SelectedID(),
	})
}

// POST /api/profiles
func (s *Server) createProfile(c *gin.Context) {
	var fields models.CropProfile
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.profiles.Create(fields)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GET /api/profiles/:id
func (s *Server) getProfile(c *gin.Context) {
	p, err := s.profiles.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PUT /api/profiles/:id
func (s *Server) updateProfile(c *gin.Context) {
	var fields models.CropProfile
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := s.profiles.Update(c.Param("id"), fields)
	if err != nil {
		fail(c, err)
		return
	}
	s.refresh(c)
	c.JSON(http.StatusOK, updated)
}

// POST /api/profiles/:id/delete-request returns the token DELETE must echo
func (s *Server) requestProfileDelete(c *gin.Context) {
	token, err := s.profiles.RequestDelete(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// DELETE /api/profiles/:id?confirm=<token>
func (s *Server) deleteProfile(c *gin.Context) {
	if err := s.profiles.Delete(c.Param("id"), c.Query("confirm")); err != nil {
		fail(c, err)
		return
	}
	s.refresh(c)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Crop profile deleted",
		"selected": s.profiles.SelectedID(),
	})
}

// GET /api/profiles/selected
func (s *Server) getSelectedProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"selected": s.profiles.SelectedID(),
		"profile":  s.profiles.Active(),
	})
}

// PUT /api/profiles/selected; an empty id clears the selection
func (s *Server) selectProfile(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.profiles.Select(req.ID); err != nil {
		fail(c, err)
		return
	}
	s.refresh(c)
	c.JSON(http.StatusOK, gin.H{
		"selected": s.profiles.SelectedID(),
		"profile":  s.profiles.Active(),
	})
}
