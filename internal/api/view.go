package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"agrosense/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type selectionRequest struct {
	ID string `json:"id"`
}

// GET /api/view
func (s *Server) getView(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.View())
}

// GET /api/ws streams every new view as a JSON text message
func (s *Server) streamViews(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("API: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	views, cancel := s.session.Watch()
	defer cancel()

	// the reader only detects the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for v := range views {
		if err := conn.WriteJSON(v); err != nil {
			logger.Debugf("API: websocket write failed: %v", err)
			return
		}
	}
}

// PUT /api/selection/master
func (s *Server) selectMaster(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.session.SelectMaster(c.Request.Context(), req.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.session.View())
}

// PUT /api/selection/view
func (s *Server) selectView(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.session.SelectView(c.Request.Context(), req.ID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.session.View())
}

// POST /api/irrigation/toggle. The new state shows up in a later view.
func (s *Server) toggleIrrigation(c *gin.Context) {
	if err := s.session.ToggleIrrigation(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Irrigation toggle sent"})
}
