package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cooling_control/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errLimit       = "invalid 'limit'; must be a non-negative integer"
	errRange       = "'from' must be <= 'to'"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// logQuery is the raw query string of GET /api/v1/logs.
type logQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Type  string `form:"type"`
	Limit int    `form:"limit" binding:"min=0"`
}

// filter converts the query into a journal filter. A date-only 'to' covers
// the whole day.
func (q logQuery) filter() (service.LogFilter, error) {
	f := service.LogFilter{
		Type:  strings.ToUpper(strings.TrimSpace(q.Type)),
		Limit: q.Limit,
	}
	var err error
	if q.From != "" {
		if f.From, err = parseQueryTime(q.From); err != nil {
			return f, errors.New(errFromInvalid)
		}
	}
	if q.To != "" {
		if f.To, err = parseQueryTime(q.To); err != nil {
			return f, errors.New(errToInvalid)
		}
		if !strings.ContainsAny(q.To, "T ") {
			f.To = f.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errors.New(errRange)
	}
	return f, nil
}

// @Summary      List control events
// @Description  Journal of operator commands and safety transitions. Filter by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive (23:59:59.999999999Z).
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to    query   string  false  "End of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). Date-only treated as end of day."  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(START,STOP,MODE_CHANGE,SETTING_CHANGE,ALARM,POSTRUN,NORMAL,SENSOR_FAULT,ACTUATOR_FAULT)
// @Param        limit query   int     false  "Most recent N events"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	var q logQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errLimit})
		return
	}
	filter, err := q.filter()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	if errors.Is(err, service.ErrInvalidLogFilter) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		if h.log != nil {
			h.log.Errorw("logs_list_failed", "err", err, "from", filter.From, "to", filter.To, "type", filter.Type)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// parseQueryTime accepts RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD' and
// returns UTC.
func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format %q", s)
}
