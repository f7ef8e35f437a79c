// Package api exposes the dashboard session and the local stores over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"agrosense/internal/aggregator"
	"agrosense/internal/dashboard"
	"agrosense/internal/database"
	"agrosense/internal/notes"
	"agrosense/internal/prefs"
	"agrosense/internal/profiles"
)

// DailyAverager answers archive queries
type DailyAverager interface {
	DailyAverages(ctx context.Context, masterID, deviceID string, from, to time.Time) ([]database.DailyAverage, error)
}

// Options holds HTTP adapter configuration
type Options struct {
	CORSOrigins  []string
	ExportPrefix string
	Location     *time.Location
	Sessions     aggregator.SessionConfig
}

// Server holds the handlers' dependencies
type Server struct {
	session  *dashboard.Session
	profiles *profiles.Store
	notes    *notes.Store
	prefs    prefs.Store
	archive  DailyAverager
	opts     Options
	now      func() time.Time
}

// NewServer creates the HTTP adapter. archive may be nil when archiving is disabled.
func NewServer(
	session *dashboard.Session,
	profileStore *profiles.Store,
	noteStore *notes.Store,
	prefStore prefs.Store,
	archive DailyAverager,
	opts Options,
) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Sessions.Gap <= 0 {
		opts.Sessions = aggregator.DefaultSessionConfig()
	}
	if opts.ExportPrefix == "" {
		opts.ExportPrefix = "AgroSense"
	}
	return &Server{
		session:  session,
		profiles: profileStore,
		notes:    noteStore,
		prefs:    prefStore,
		archive:  archive,
		opts:     opts,
		now:      time.Now,
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(corsConfig(s.opts.CORSOrigins)))

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	api.GET("/view", s.getView)
	api.GET("/ws", s.streamViews)
	api.PUT("/selection/master", s.selectMaster)
	api.PUT("/selection/view", s.selectView)
	api.POST("/irrigation/toggle", s.toggleIrrigation)

	api.GET("/profiles", s.listProfiles)
	api.POST("/profiles", s.createProfile)
	api.GET("/profiles/selected", s.getSelectedProfile)
	api.PUT("/profiles/selected", s.selectProfile)
	api.GET("/profiles/:id", s.getProfile)
	api.PUT("/profiles/:id", s.updateProfile)
	api.POST("/profiles/:id/delete-request", s.requestProfileDelete)
	api.DELETE("/profiles/:id", s.deleteProfile)

	api.GET("/devices/:device/notes", s.listNotes)
	api.POST("/devices/:device/notes", s.addNote)
	api.DELETE("/devices/:device/notes/:id", s.deleteNote)
	api.GET("/devices/:device/export.xlsx", s.exportXLSX)
	api.GET("/devices/:device/export.csv", s.exportCSV)
	api.GET("/devices/:device/history", s.history)
	api.GET("/devices/:device/archive", s.archiveAverages)

	api.GET("/preferences", s.getPreferences)
	api.PUT("/preferences", s.putPreferences)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.session.View().Version,
	})
}

// fail writes err with the status its kind maps to
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, profiles.ErrNotFound),
		errors.Is(err, notes.ErrNotFound),
		errors.Is(err, dashboard.ErrUnknownMaster),
		errors.Is(err, dashboard.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, profiles.ErrNameRequired),
		errors.Is(err, profiles.ErrConfirmationRequired),
		errors.Is(err, notes.ErrEmptyContent),
		errors.Is(err, notes.ErrNoDevice),
		errors.Is(err, prefs.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNoDevice):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrStopped),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
