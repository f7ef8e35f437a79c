package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"agrosense/internal/aggregator"
	"agrosense/internal/export"
)

const dateLayout = "2006-01-02"

type noteRequest struct {
	Content string `json:"content"`
}

// GET /api/devices/:device/notes
func (s *Server) listNotes(c *gin.Context) {
	c.JSON(http.StatusOK, s.notes.List(c.Param("device")))
}

// POST /api/devices/:device/notes
func (s *Server) addNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.notes.Add(c.Param("device"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// DELETE /api/devices/:device/notes/:id
func (s *Server) deleteNote(c *gin.Context) {
	if err := s.notes.Delete(c.Param("device"), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}

// GET /api/devices/:device/export.xlsx
func (s *Server) exportXLSX(c *gin.Context) {
	s.export(c, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// GET /api/devices/:device/export.csv
func (s *Server) exportCSV(c *gin.Context) {
	s.export(c, "csv", "text/csv")
}

func (s *Server) export(c *gin.Context, ext, contentType string) {
	device := c.Param("device")
	data, err := s.session.Device(c.Request.Context(), device)
	if err != nil {
		fail(c, err)
		return
	}

	var buf bytes.Buffer
	switch ext {
	case "xlsx":
		err = export.WriteXLSX(&buf, data.FullData, s.opts.Location)
	default:
		err = export.WriteCSV(&buf, data.FullData, s.opts.Location)
	}
	if err != nil {
		fail(c, err)
		return
	}

	name := export.Filename(s.opts.ExportPrefix+"-"+device, s.now().In(s.opts.Location), ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// GET /api/devices/:device/history?from=&to=&irrigation=&q=&sort=&order=
func (s *Server) history(c *gin.Context) {
	q, err := s.historyQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := s.session.Device(c.Request.Context(), c.Param("device"))
	if err != nil {
		fail(c, err)
		return
	}

	cfg := s.opts.Sessions
	cfg.Location = s.opts.Location
	c.JSON(http.StatusOK, gin.H{
		"from": q.From,
		"to":   q.To,
		"days": aggregator.History(data.FullData, cfg, q),
	})
}

// GET /api/devices/:device/archive?from=&to=&master=; master defaults to the selected one
func (s *Server) archiveAverages(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telemetry archive is disabled"})
		return
	}
	q, err := s.historyQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	master := c.DefaultQuery("master", s.session.View().SelectedMaster)
	if master == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no master selected"})
		return
	}
	days, err := s.archive.DailyAverages(c.Request.Context(), master, c.Param("device"), q.From, q.To)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"master": master, "from": q.From, "to": q.To, "days": days})
}

// historyQuery reads the query string; the date range defaults to the last seven days
func (s *Server) historyQuery(c *gin.Context) (aggregator.HistoryQuery, error) {
	loc := s.opts.Location
	from, to := aggregator.DefaultDateRange(s.now(), loc)

	if v := c.Query("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return aggregator.HistoryQuery{}, fmt.Errorf("invalid from date %q", v)
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return aggregator.HistoryQuery{}, fmt.Errorf("invalid to date %q", v)
		}
		to = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if to.Before(from) {
		return aggregator.HistoryQuery{}, fmt.Errorf("to date is before from date")
	}

	irrigation := aggregator.IrrigationFilter(strings.ToLower(c.DefaultQuery("irrigation", string(aggregator.IrrigationAll))))
	switch irrigation {
	case aggregator.IrrigationAll, aggregator.IrrigationYes, aggregator.IrrigationNo:
	default:
		return aggregator.HistoryQuery{}, fmt.Errorf("invalid irrigation filter %q", irrigation)
	}

	var descending bool
	switch c.DefaultQuery("order", "desc") {
	case "asc":
	case "desc":
		descending = true
	default:
		return aggregator.HistoryQuery{}, fmt.Errorf("invalid order %q", c.Query("order"))
	}

	return aggregator.HistoryQuery{
		From:       from,
		To:         to,
		Irrigation: irrigation,
		Search:     c.Query("q"),
		SortBy:     c.DefaultQuery("sort", "date"),
		Descending: descending,
	}, nil
}
