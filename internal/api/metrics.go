package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/report"
)

// reportFilters reads from, to, part_type and station_id.
func reportFilters(c *gin.Context) (report.Filters, bool) {
	from, to, err := parseRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return report.Filters{}, false
	}
	stationID, err := parseOptionalUint(c, "station_id")
	if err != nil {
		badRequest(c, err.Error())
		return report.Filters{}, false
	}
	return report.Filters{From: from, To: to, PartType: c.Query("part_type"), StationID: stationID}, true
}

func (s *Server) handlePartsByStatus(c *gin.Context) {
	f, ok := reportFilters(c)
	if !ok {
		return
	}
	rows, err := report.PartsByStatus(c.Request.Context(), s.db, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// handleThroughput requires both ends of the range.
func (s *Server) handleThroughput(c *gin.Context) {
	f, ok := reportFilters(c)
	if !ok {
		return
	}
	if f.From.IsZero() || f.To.IsZero() {
		badRequest(c, "from and to are required")
		return
	}
	rows, err := report.Throughput(c.Request.Context(), s.db, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleStationCycleTime(c *gin.Context) {
	f, ok := reportFilters(c)
	if !ok {
		return
	}
	rows, err := report.StationCycleTime(c.Request.Context(), s.db, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleScrapRate(c *gin.Context) {
	f, ok := reportFilters(c)
	if !ok {
		return
	}
	rows, err := report.ScrapRate(c.Request.Context(), s.db, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleOverview(c *gin.Context) {
	ov, err := report.GetOverview(c.Request.Context(), s.db, s.now())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (s *Server) handleStationLoad(c *gin.Context) {
	f, ok := reportFilters(c)
	if !ok {
		return
	}
	rows, err := report.StationLoad(c.Request.Context(), s.db, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
