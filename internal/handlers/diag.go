package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// diagTimeout bounds how long a request waits for the shared bus.
const diagTimeout = 5 * time.Second

// @Summary      Scan sensor buses
// @Description  Probes the I2C bus (0x08..0x77) and lists 1-Wire thermocouple converters
// @Tags         diagnostics
// @Produce      json
// @Success      200  {object}  cooling_control.ScanResponse
// @Failure      401  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/diag/scan [get]
// @Security     BearerAuth
func (h *Handler) diagScan(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), diagTimeout)
	defer cancel()

	resp, err := h.services.Diagnostics.Scan(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusServiceUnavailable, err.Error(), "diag_scan_failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Raw sensor read
// @Description  One-shot read of every configured channel; does not affect the control loop
// @Tags         diagnostics
// @Produce      json
// @Success      200  {object}  cooling_control.RawReadResponse
// @Failure      401  {object}  map[string]string
// @Failure      504  {object}  map[string]string
// @Router       /api/v1/diag/read [get]
// @Security     BearerAuth
func (h *Handler) diagRead(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), diagTimeout)
	defer cancel()

	resp, err := h.services.Diagnostics.RawRead(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusGatewayTimeout, "sensor read timed out", "diag_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
