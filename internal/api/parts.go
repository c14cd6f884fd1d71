package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/part"
	"github.com/zulandar/partline/internal/trace"
)

func (s *Server) handleListParts(c *gin.Context) {
	skip, limit, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	from, to, err := parseRange(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	f := part.ListFilters{
		PartType:    c.Query("part_type"),
		Lot:         c.Query("lot"),
		CreatedFrom: from,
		CreatedTo:   to,
		Skip:        skip,
		Limit:       limit,
	}
	if v := c.Query("status"); v != "" {
		if f.Status, err = models.ParsePartStatus(v); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	parts, err := part.List(s.dbFor(c), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]partDTO, len(parts))
	for i := range parts {
		out[i] = toPart(&parts[i])
	}
	c.JSON(http.StatusOK, out)
}

type createPartRequest struct {
	ID       string `json:"id" binding:"required"`
	PartType string `json:"part_type" binding:"required"`
	Lot      string `json:"lot" binding:"required"`
}

func (s *Server) handleCreatePart(c *gin.Context) {
	var req createPartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id, part_type and lot are required")
		return
	}
	p, err := part.Create(s.dbFor(c), part.CreateOpts{ID: req.ID, PartType: req.PartType, Lot: req.Lot})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.Info("part registered", "part_id", p.ID, "part_type", p.PartType, "lot", p.Lot)
	c.JSON(http.StatusCreated, toPart(p))
}

func (s *Server) handleGetPart(c *gin.Context) {
	p, err := part.Get(s.dbFor(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPart(p))
}

type updatePartRequest struct {
	PartType *string `json:"part_type"`
	Lot      *string `json:"lot"`
	Status   *string `json:"status"`
}

// handleUpdatePart edits descriptive fields only. The aggregate is derived
// from trace events, so a status in the body is refused.
func (s *Server) handleUpdatePart(c *gin.Context) {
	var req updatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if req.Status != nil {
		badRequest(c, "status is derived from trace events and cannot be set")
		return
	}
	p, err := part.Update(s.dbFor(c), c.Param("id"), part.UpdateOpts{PartType: req.PartType, Lot: req.Lot})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPart(p))
}

func (s *Server) handlePartHistory(c *gin.Context) {
	events, err := trace.History(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEvents(events))
}

func (s *Server) handleVerifyPart(c *gin.Context) {
	v, err := part.Verify(s.dbFor(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !v.Consistent {
		s.log.Warn("part aggregate drift", "part_id", v.PartID, "stored", v.Stored, "replayed", v.Replayed)
	}
	c.JSON(http.StatusOK, v)
}
