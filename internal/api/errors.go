package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/auth"
	"github.com/zulandar/partline/internal/part"
	"github.com/zulandar/partline/internal/station"
	"github.com/zulandar/partline/internal/trace"
	"github.com/zulandar/partline/internal/user"
)

// apiError is the client-facing rendering of an error.
type apiError struct {
	Status  int
	Code    string
	Message string
}

// classify maps a domain error to its client-facing status, code and message.
// Anything unrecognized is an internal error whose detail stays in the logs.
func classify(err error) apiError {
	switch {
	case errors.Is(err, trace.ErrPartNotFound), errors.Is(err, part.ErrNotFound):
		return apiError{http.StatusNotFound, "part_not_found", "part not found"}
	case errors.Is(err, trace.ErrStationNotFound), errors.Is(err, station.ErrNotFound):
		return apiError{http.StatusNotFound, "station_not_found", "station not found"}
	case errors.Is(err, trace.ErrEventNotFound):
		return apiError{http.StatusNotFound, "event_not_found", "trace event not found"}
	case errors.Is(err, user.ErrNotFound):
		return apiError{http.StatusNotFound, "user_not_found", "user not found"}

	case errors.Is(err, trace.ErrInvalidTimeRange), errors.Is(err, part.ErrNegativeDuration):
		return apiError{http.StatusBadRequest, "invalid_time_range", "exit time must be after entry time"}
	case errors.Is(err, part.ErrUnknownOutcome):
		return apiError{http.StatusBadRequest, "invalid_outcome", "outcome must be one of OK, SCRAP, REWORK"}
	case errors.Is(err, part.ErrInvalid), errors.Is(err, station.ErrInvalid), errors.Is(err, user.ErrInvalid):
		return apiError{http.StatusBadRequest, "invalid_input", err.Error()}

	case errors.Is(err, part.ErrDuplicate):
		return apiError{http.StatusConflict, "duplicate_part", "part serial already registered"}
	case errors.Is(err, station.ErrDuplicateName):
		return apiError{http.StatusConflict, "duplicate_station", "station name already in use"}
	case errors.Is(err, station.ErrInUse):
		return apiError{http.StatusConflict, "station_in_use", "station is referenced by trace events"}
	case errors.Is(err, user.ErrDuplicateEmail):
		return apiError{http.StatusConflict, "duplicate_email", "email already registered"}
	case errors.Is(err, trace.ErrPartScrapped):
		return apiError{http.StatusConflict, "part_scrapped", "part is scrapped"}
	case errors.Is(err, trace.ErrOutOfOrder):
		return apiError{http.StatusConflict, "out_of_order", "entry precedes the part's last recorded exit"}

	case errors.Is(err, auth.ErrInvalidCredentials):
		return apiError{http.StatusUnauthorized, "invalid_credentials", "incorrect email or password"}
	case errors.Is(err, auth.ErrInactiveUser):
		return apiError{http.StatusForbidden, "inactive_user", "user is inactive"}

	default:
		return apiError{http.StatusInternalServerError, "internal", "internal error"}
	}
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"message": msg, "code": code},
	})
}

// respondError renders err and logs it; internal errors are logged in full.
func (s *Server) respondError(c *gin.Context, err error) apiError {
	e := classify(err)
	if e.Status >= http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", c.GetString(requestIDKey), "path", c.FullPath(), "error", err)
	} else {
		s.log.Debug("request rejected", "request_id", c.GetString(requestIDKey), "code", e.Code, "error", err)
	}
	writeError(c, e.Status, e.Code, e.Message)
	return e
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, http.StatusBadRequest, "bad_request", msg)
}
