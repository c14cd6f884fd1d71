package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/station"
)

func (s *Server) handleListStations(c *gin.Context) {
	skip, limit, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	f := station.ListFilters{Line: c.Query("line"), Skip: skip, Limit: limit}
	if v := c.Query("type"); v != "" {
		if f.Type, err = models.ParseStationType(v); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	stations, err := station.List(s.dbFor(c), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]stationDTO, len(stations))
	for i := range stations {
		out[i] = toStation(&stations[i])
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetStation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	st, err := station.Get(s.dbFor(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStation(st))
}

type createStationRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
	Line string `json:"line" binding:"required"`
}

func (s *Server) handleCreateStation(c *gin.Context) {
	var req createStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, type and line are required")
		return
	}
	st, err := station.Create(s.dbFor(c), station.CreateOpts{
		Name: req.Name,
		Type: models.StationType(req.Type),
		Line: req.Line,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("station created", "station_id", st.ID, "name", st.Name)
	c.JSON(http.StatusCreated, toStation(st))
}

type updateStationRequest struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
	Line *string `json:"line"`
}

// handleUpdateStation serves both PUT and PATCH; omitted fields are kept.
func (s *Server) handleUpdateStation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateStationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	opts := station.UpdateOpts{Name: req.Name, Line: req.Line}
	if req.Type != nil {
		typ := models.StationType(*req.Type)
		opts.Type = &typ
	}
	st, err := station.Update(s.dbFor(c), id, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStation(st))
}

func (s *Server) handleDeleteStation(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := station.Delete(s.dbFor(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("station deleted", "station_id", id)
	c.Status(http.StatusNoContent)
}
