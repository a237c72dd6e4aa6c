package handlers

import (
	"errors"
	"net/http"

	"cooling_control/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK      = "ok"
	statusStarted = "started"
	statusStopped = "stopped"
	statusApplied = "applied"

	errStartLoop       = "failed to start control loop"
	errStopLoop        = "failed to stop control loop"
	errGetState        = "failed to load state"
	errPersist         = "command applied but could not be saved"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// commandResult maps a service error: storage failures are 500, anything
// else was rejected by validation and is 400.
func (h *Handler) commandResult(c *gin.Context, logKey string, err error, extra gin.H) {
	if err == nil {
		h.respondWithStatusAndState(c, statusApplied, extra)
		return
	}
	op, _ := operatorFrom(c)
	if errors.Is(err, service.ErrStorage) {
		h.logAndJSONError(c, http.StatusInternalServerError, errPersist, logKey, err, "operator", op.Username)
		return
	}
	if h.log != nil {
		h.log.Infow(logKey, "operator", op.Username, "err", err)
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *Handler) bindCommand(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

// SetpointRequest sets the regulated temperature.
type SetpointRequest struct {
	Setpoint *float64 `json:"setpoint" binding:"required" example:"35"`
}

// ModeRequest switches between PID regulation and a fixed output.
type ModeRequest struct {
	// Allowed: auto, manual
	Mode string `json:"mode" binding:"required" example:"auto"`
}

// PercentRequest carries a single output percentage in [0,100].
type PercentRequest struct {
	Percent *float64 `json:"percent" binding:"required" example:"60"`
}

// AlarmRequest changes the alarm threshold and/or the forced alarm output.
type AlarmRequest struct {
	Threshold *float64 `json:"threshold,omitempty" example:"60"`
	Percent   *float64 `json:"percent,omitempty" example:"100"`
}

// GainsRequest replaces the PID gains.
type GainsRequest struct {
	Kp *float64 `json:"kp" binding:"required" example:"1"`
	Ki *float64 `json:"ki" binding:"required" example:"0.1"`
	Kd *float64 `json:"kd" binding:"required" example:"0"`
}

// SwapRequest exchanges the regulated and protected sensors.
type SwapRequest struct {
	Swap *bool `json:"swap" binding:"required" example:"false"`
}

// PostrunRequest sets how long the alarm output is held after recovery.
type PostrunRequest struct {
	Seconds *float64 `json:"seconds" binding:"required" example:"30"`
}

// ActuatorMinRequest overrides the actuator minimum; null restores the configured one.
type ActuatorMinRequest struct {
	Min *int `json:"min" example:"10"`
}

// SmoothingRequest toggles EMA smoothing; alpha 0 keeps the current value.
type SmoothingRequest struct {
	Enabled *bool   `json:"enabled" binding:"required" example:"true"`
	Alpha   float64 `json:"alpha,omitempty" example:"0.3"`
}

// ThermocoupleRequest selects the MCP9600 thermocouple type.
type ThermocoupleRequest struct {
	// One of K, J, T, N, S, E, B, R
	Type string `json:"type" binding:"required" example:"K"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get control state
// @Description  Latest loop snapshot plus the postrun countdown
// @Tags         control
// @Produce      json
// @Success      200  {object}  cooling_control.StateResponse
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/control/state [get]
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "control_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Start control loop
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/control/start [post]
// @Security     BearerAuth
func (h *Handler) startLoop(c *gin.Context) {
	if err := h.services.Control.Start(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errStartLoop, "control_start_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStarted, gin.H{})
}

// @Summary      Stop control loop
// @Description  Stops the worker and drives the actuator to 0
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/control/stop [post]
// @Security     BearerAuth
func (h *Handler) stopLoop(c *gin.Context) {
	if err := h.services.Control.Stop(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errStopLoop, "control_stop_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStopped, gin.H{})
}

// @Summary      Set setpoint
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      SetpointRequest  true  "Setpoint in °C"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/setpoint [post]
// @Security     BearerAuth
func (h *Handler) setSetpoint(c *gin.Context) {
	var req SetpointRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetSetpoint(c.Request.Context(), *req.Setpoint)
	h.commandResult(c, "control_set_setpoint_failed", err, gin.H{"setpoint": *req.Setpoint})
}

// @Summary      Set mode
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      ModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/mode [post]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	var req ModeRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetMode(c.Request.Context(), req.Mode)
	h.commandResult(c, "control_set_mode_failed", err, gin.H{"mode": req.Mode})
}

// @Summary      Set manual output
// @Description  Output used in manual mode
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      PercentRequest  true  "Percent in [0,100]"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/manual [post]
// @Security     BearerAuth
func (h *Handler) setManual(c *gin.Context) {
	var req PercentRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetManualPercent(c.Request.Context(), *req.Percent)
	h.commandResult(c, "control_set_manual_failed", err, gin.H{"manual_percent": *req.Percent})
}

// @Summary      Set alarm
// @Description  At least one of threshold and percent is required
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      AlarmRequest  true  "Alarm payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/alarm [post]
// @Security     BearerAuth
func (h *Handler) setAlarm(c *gin.Context) {
	var req AlarmRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetAlarm(c.Request.Context(), service.AlarmParams{
		Threshold: req.Threshold,
		Percent:   req.Percent,
	})
	h.commandResult(c, "control_set_alarm_failed", err, gin.H{})
}

// @Summary      Set PID gains
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      GainsRequest  true  "Gains payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/gains [post]
// @Security     BearerAuth
func (h *Handler) setGains(c *gin.Context) {
	var req GainsRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetGains(c.Request.Context(), service.GainsParams{
		Kp: *req.Kp,
		Ki: *req.Ki,
		Kd: *req.Kd,
	})
	h.commandResult(c, "control_set_gains_failed", err, gin.H{})
}

// @Summary      Swap sensor roles
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      SwapRequest  true  "Swap payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/swap [post]
// @Security     BearerAuth
func (h *Handler) setSwap(c *gin.Context) {
	var req SwapRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetSwapSensors(c.Request.Context(), *req.Swap)
	h.commandResult(c, "control_set_swap_failed", err, gin.H{"swap_sensors": *req.Swap})
}

// @Summary      Set postrun duration
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      PostrunRequest  true  "Postrun payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/postrun [post]
// @Security     BearerAuth
func (h *Handler) setPostrun(c *gin.Context) {
	var req PostrunRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetPostrunSeconds(c.Request.Context(), *req.Seconds)
	h.commandResult(c, "control_set_postrun_failed", err, gin.H{"postrun_seconds": *req.Seconds})
}

// @Summary      Override actuator minimum
// @Description  {"min":null} restores the configured minimum
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      ActuatorMinRequest  true  "Minimum payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/actuator/min [post]
// @Security     BearerAuth
func (h *Handler) setActuatorMin(c *gin.Context) {
	var req ActuatorMinRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetActuatorMin(c.Request.Context(), req.Min)
	h.commandResult(c, "control_set_actuator_min_failed", err, gin.H{})
}

// @Summary      Configure smoothing
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      SmoothingRequest  true  "Smoothing payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/smoothing [post]
// @Security     BearerAuth
func (h *Handler) setSmoothing(c *gin.Context) {
	var req SmoothingRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetSmoothing(c.Request.Context(), service.SmoothingParams{
		Enabled: *req.Enabled,
		Alpha:   req.Alpha,
	})
	h.commandResult(c, "control_set_smoothing_failed", err, gin.H{})
}

// @Summary      Set thermocouple type
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body      ThermocoupleRequest  true  "Thermocouple payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/control/thermocouple [post]
// @Security     BearerAuth
func (h *Handler) setThermocouple(c *gin.Context) {
	var req ThermocoupleRequest
	if !h.bindCommand(c, &req) {
		return
	}
	err := h.services.Control.SetThermocoupleType(c.Request.Context(), req.Type)
	h.commandResult(c, "control_set_thermocouple_failed", err, gin.H{"thermocouple_type": req.Type})
}
