package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/pagination"
	"github.com/zulandar/partline/internal/report"
)

// parsePage reads skip and limit. Negative skip and non-positive limit are
// rejected; limits above pagination.MaxLimit are clamped.
func parsePage(c *gin.Context) (int, int, error) {
	skip, limit := 0, pagination.DefaultLimit
	if v := c.Query("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("skip must be a non-negative integer")
		}
		skip = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("limit must be a positive integer")
		}
		limit = n
	}
	skip, limit = pagination.Clamp(skip, limit)
	return skip, limit, nil
}

// localTimestamp is an ISO 8601 timestamp without a zone offset.
const localTimestamp = "2006-01-02T15:04:05.999999999"

// parseTimestamp reads an RFC 3339 timestamp. A timestamp without an offset
// is taken as UTC.
func parseTimestamp(name, v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(localTimestamp, v, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", name)
}

// parseTime reads an RFC 3339 timestamp or a YYYY-MM-DD date. A bare date
// given as an upper bound covers the whole UTC day.
func parseTime(c *gin.Context, name string, upper bool) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name)
	}
	if upper {
		_, end := report.DayBounds(d)
		return end, nil
	}
	return d.UTC(), nil
}

// parseRange reads the from/to pair.
func parseRange(c *gin.Context) (time.Time, time.Time, error) {
	from, err := parseTime(c, "from", false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTime(c, "to", true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must not precede from")
	}
	return from, to, nil
}

func parseUint(v, name string) (uint, error) {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return uint(n), nil
}

// parseOptionalUint reads an optional positive integer query parameter.
func parseOptionalUint(c *gin.Context, name string) (uint, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	return parseUint(v, name)
}

func parseOptionalBool(c *gin.Context, name string) (*bool, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be true or false", name)
	}
	return &b, nil
}

// idParam reads a numeric :id path parameter, writing 400 on failure.
func idParam(c *gin.Context) (uint, bool) {
	id, err := parseUint(c.Param("id"), "id")
	if err != nil {
		badRequest(c, err.Error())
		return 0, false
	}
	return id, true
}
