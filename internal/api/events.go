package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/auth"
	"github.com/zulandar/partline/internal/idempotency"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/pagination"
	"github.com/zulandar/partline/internal/trace"
)

type recordRequest struct {
	PartID     string    `json:"part_id" binding:"required"`
	StationID  uint      `json:"station_id" binding:"required"`
	EnteredAt  string    `json:"entered_at" binding:"required"`
	ExitedAt   string    `json:"exited_at" binding:"required"`
	Outcome    string    `json:"outcome" binding:"required"`
	OperatorID *uint     `json:"operator_id"`
	Notes      string    `json:"notes"`
}

// handleRecordEvent records a station visit. With an Idempotency-Key header
// a retried request returns the event the first attempt produced.
func (s *Server) handleRecordEvent(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "part_id, station_id, entered_at, exited_at and outcome are required")
		return
	}
	entered, err := parseTimestamp("entered_at", req.EnteredAt)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	exited, err := parseTimestamp("exited_at", req.ExitedAt)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	outcome, err := models.ParseOutcome(req.Outcome)
	if err != nil {
		s.observeRejection("invalid_outcome")
		writeError(c, http.StatusBadRequest, "invalid_outcome", "outcome must be one of OK, SCRAP, REWORK")
		return
	}

	ctx := c.Request.Context()
	actor := auth.ActorFrom(c)
	key := s.idempotencyKey(c, actor)
	if key != "" {
		res, err := s.idem.Begin(ctx, key)
		if err != nil {
			s.respondError(c, err)
			return
		}
		switch res.State {
		case idempotency.StatePending:
			writeError(c, http.StatusConflict, "idempotency_in_flight", "a request with this Idempotency-Key is still in progress")
			return
		case idempotency.StateDone:
			ev, err := trace.Get(ctx, s.db, res.EventID)
			if err != nil {
				s.respondError(c, err)
				return
			}
			c.Header(headerIdempotentReply, "true")
			c.JSON(http.StatusCreated, toEvent(ev))
			return
		}
	}

	ev, err := s.rec.Record(ctx, actor, trace.RecordOpts{
		PartID:     req.PartID,
		StationID:  req.StationID,
		EnteredAt:  entered,
		ExitedAt:   exited,
		Outcome:    outcome,
		OperatorID: req.OperatorID,
		Notes:      req.Notes,
	})
	if err != nil {
		if key != "" {
			s.releaseKey(key)
		}
		e := s.respondError(c, err)
		s.observeRejection(e.Code)
		return
	}
	if key != "" {
		if err := s.idem.Complete(ctx, key, ev.ID); err != nil {
			s.log.Error("idempotency complete failed", "event_id", ev.ID, "error", err)
		}
	}
	c.JSON(http.StatusCreated, toEvent(ev))
}

// idempotencyKey scopes the header value to the caller, or returns "" when
// idempotency is disabled or the header is absent.
func (s *Server) idempotencyKey(c *gin.Context, actor *models.Actor) string {
	if s.idem == nil {
		return ""
	}
	k := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if k == "" {
		return ""
	}
	return fmt.Sprintf("%d:%s", actor.UserID, k)
}

func (s *Server) releaseKey(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.idem.Abort(ctx, key); err != nil {
		s.log.Warn("idempotency abort failed", "error", err)
	}
}

func (s *Server) observeRejection(reason string) {
	if s.metrics != nil {
		s.metrics.ObserveRejection(reason)
	}
}

func (s *Server) handleListEvents(c *gin.Context) {
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
	stationID, err := parseOptionalUint(c, "station_id")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	f := trace.ListFilters{
		PartID:    c.Query("part_id"),
		StationID: stationID,
		From:      from,
		To:        to,
		Skip:      skip,
		Limit:     limit,
	}
	if v := c.Query("outcome"); v != "" {
		if f.Outcome, err = models.ParseOutcome(v); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	events, err := trace.List(c.Request.Context(), s.db, f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEvents(events))
}

func (s *Server) handleGetEvent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ev, err := trace.Get(c.Request.Context(), s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEvent(ev))
}

// handleEventStream pushes newly recorded events as server-sent events. It
// polls by id so it sees events committed by any process sharing the store;
// ids that commit late are still delivered. ?after=<id> replays events after
// that id first.
func (s *Server) handleEventStream(c *gin.Context) {
	ctx := c.Request.Context()

	lastSeen, err := trace.LatestID(ctx, s.db)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			badRequest(c, "after must be a non-negative integer")
			return
		}
		lastSeen = uint(n)
	}
	tail := trace.NewTail(s.db, lastSeen, s.streamGrace)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", gin.H{"last_event_id": lastSeen})
	c.Writer.Flush()

	ticker := time.NewTicker(s.streamInterval)
	heartbeat := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", gin.H{
				"timestamp": s.now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			events, err := tail.Poll(ctx, pagination.MaxLimit)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("event stream poll failed", "error", err)
				}
				continue
			}
			if len(events) == 0 {
				continue
			}
			for i := range events {
				writeSSE(c.Writer, "trace_event", toEvent(&events[i]))
			}
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
